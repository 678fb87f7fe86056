package dga

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"time"
)

// Generator produces the lab's deterministic DGA label sets.
//
// A label is derived as sha256(seed + ":" + timestamp + ":" + index), where
// timestamp is the batch time in UTC formatted as yyyymmddhhmm. The digest
// is base32-encoded, lowercased, stripped of padding, reduced to
// alphanumerics and truncated to the profile's label length; a leading
// digit is rewritten to 'a' so labels look domain-like. Labels within a set
// are unique; index counts up until set_size distinct labels exist. TLDs
// are attached one-to-one from the profile's pool (index modulo pool size).
//
// Two generators built from the same profile emit identical sets for the
// same batch time, which is how the victim and the endpoint stay in sync
// without talking to each other.
type Generator struct {
	profile Profile
	now     func() time.Time
}

// NewGenerator builds a generator over the profile.
func NewGenerator(profile Profile) *Generator {
	return &Generator{profile: profile, now: time.Now}
}

// Profile returns the generator's profile.
func (g *Generator) Profile() Profile {
	return g.profile
}

// Labels generates the set of set_size unique labels for the batch time t.
func (g *Generator) Labels(t time.Time) []string {
	timestamp := t.UTC().Format("200601021504")
	labels := make([]string, 0, g.profile.SetSize)
	seen := make(map[string]struct{}, g.profile.SetSize)

	for i := 0; len(labels) < g.profile.SetSize; i++ {
		label := labelAt(g.profile.Seed, timestamp, i, g.profile.LabelLength)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}

// Domains attaches the profile's TLDs one-to-one to the labels for batch
// time t.
func (g *Generator) Domains(t time.Time) []string {
	labels := g.Labels(t)
	domains := make([]string, len(labels))
	for i, label := range labels {
		domains[i] = label + g.profile.TLDs[i%len(g.profile.TLDs)]
	}
	return domains
}

// NextBatch returns the domain batch for the current wall-clock time.
func (g *Generator) NextBatch() []string {
	return g.Domains(g.now())
}

// labelAt derives the deterministic label for (seed, timestamp, index).
func labelAt(seed, timestamp string, index, length int) string {
	input := fmt.Sprintf("%s:%s:%d", seed, timestamp, index)
	digest := sha256.Sum256([]byte(input))

	b32 := strings.ToLower(base32.StdEncoding.EncodeToString(digest[:]))
	b32 = strings.ReplaceAll(b32, "=", "")

	var b strings.Builder
	for _, ch := range b32 {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
			if b.Len() == length {
				break
			}
		}
	}

	label := b.String()
	if label != "" && label[0] >= '0' && label[0] <= '9' {
		label = "a" + label[1:]
	}
	return label
}
