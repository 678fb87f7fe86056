package dga

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var batchTime = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func TestLabelsStructure(t *testing.T) {
	gen := NewGenerator(DefaultProfile())
	labels := gen.Labels(batchTime)

	require.Len(t, labels, 10)

	seen := make(map[string]struct{})
	for _, label := range labels {
		assert.Len(t, label, 12, label)
		assert.NotContains(t, seen, label, "duplicate label")
		seen[label] = struct{}{}

		for _, r := range label {
			valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
			assert.True(t, valid, "label %q has invalid rune %q", label, r)
		}

		first := label[0]
		assert.False(t, first >= '0' && first <= '9', "label %q starts with a digit", label)
	}
}

func TestLabelsDeterministic(t *testing.T) {
	a := NewGenerator(DefaultProfile())
	b := NewGenerator(DefaultProfile())

	assert.Equal(t, a.Labels(batchTime), b.Labels(batchTime))
	assert.Equal(t, a.Domains(batchTime), b.Domains(batchTime))
}

func TestLabelsChangeAcrossWindows(t *testing.T) {
	gen := NewGenerator(DefaultProfile())

	first := gen.Labels(batchTime)
	second := gen.Labels(batchTime.Add(time.Minute))
	assert.NotEqual(t, first, second)

	// Sub-minute times fall into the same timestamp bucket.
	sameWindow := gen.Labels(batchTime.Add(30 * time.Second))
	assert.Equal(t, first, sameWindow)
}

func TestDomainsAttachTLDsInOrder(t *testing.T) {
	profile := DefaultProfile()
	gen := NewGenerator(profile)

	domains := gen.Domains(batchTime)
	require.Len(t, domains, profile.SetSize)

	for i, domain := range domains {
		tld := profile.TLDs[i%len(profile.TLDs)]
		assert.True(t, strings.HasSuffix(domain, tld), "domain %q expected suffix %q", domain, tld)
	}
}

func TestNextBatchUsesClock(t *testing.T) {
	gen := NewGenerator(DefaultProfile())
	gen.now = func() time.Time { return batchTime }

	assert.Equal(t, gen.Domains(batchTime), gen.NextBatch())
}

func TestLabelAtLeadingDigit(t *testing.T) {
	// Whatever the digest, the published label never starts with a digit.
	for i := 0; i < 200; i++ {
		label := labelAt("spreadlove", "202603151030", i, 12)
		require.NotEmpty(t, label)
		assert.False(t, label[0] >= '0' && label[0] <= '9', label)
	}
}

func TestLoadProfileDefaults(t *testing.T) {
	profile, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "spreadlove", profile.Seed)
	assert.Equal(t, 10, profile.SetSize)
	assert.Equal(t, 5, profile.ActiveCount)
	assert.Equal(t, 50*time.Second, profile.RotateInterval())
}

func TestLoadProfileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: testseed\nset_size: 4\nactive_count: 2\n"), 0644))

	profile, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "testseed", profile.Seed)
	assert.Equal(t, 4, profile.SetSize)
	assert.Equal(t, 2, profile.ActiveCount)
	// Unset fields keep their defaults.
	assert.Equal(t, 12, profile.LabelLength)
	assert.Len(t, profile.TLDs, 10)
}

func TestLoadProfileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("set_size: 2\nactive_count: 5\n"), 0644))

	_, err := LoadProfile(path)
	assert.Error(t, err)
}
