// Package endpoint simulates the command-and-control side of the lab:
// a rotating set of generated domains answers as a live C2, everything
// else is dropped or greeted depending on the allowlist.
package endpoint

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/abhijithsuren/dga-lab-v2/internal/dga"
	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
)

// Response classifies what the simulator does with an incoming connection.
type Response int

const (
	ResponseDropped Response = iota
	ResponseGreeting
	ResponseC2
)

func (r Response) String() string {
	switch r {
	case ResponseDropped:
		return "DROPPED"
	case ResponseGreeting:
		return "GREETING"
	case ResponseC2:
		return "C2"
	default:
		return "UNKNOWN"
	}
}

// Decision is the outcome of HandleConnection.
type Decision struct {
	Response Response
	Body     string
	Reason   string
}

// labelSet is one rotation window: the full label batch and the active
// subset currently answering as C2. Swapped atomically on rotation.
type labelSet struct {
	labels map[string]struct{}
	active map[string]struct{}
}

// Simulator routes connections by hostname. Allowlisted domains always
// get a greeting; active generated labels get the C2 banner; stale or
// foreign names are dropped.
type Simulator struct {
	gen     *dga.Generator
	allowed map[string]struct{}
	current atomic.Pointer[labelSet]
	rnd     *rand.Rand
	now     func() time.Time
}

func NewSimulator(gen *dga.Generator) *Simulator {
	profile := gen.Profile()
	allowed := make(map[string]struct{}, len(profile.AllowedDomains))
	for _, d := range profile.AllowedDomains {
		allowed[strings.ToLower(d)] = struct{}{}
	}

	s := &Simulator{
		gen:     gen,
		allowed: allowed,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
	s.Rotate()
	return s
}

// Rotate regenerates the label batch for the current time and picks a
// fresh random active subset. Connections in flight keep the old set.
func (s *Simulator) Rotate() {
	profile := s.gen.Profile()
	labels := s.gen.Labels(s.now())

	set := &labelSet{
		labels: make(map[string]struct{}, len(labels)),
		active: make(map[string]struct{}, profile.ActiveCount),
	}
	for _, l := range labels {
		set.labels[l] = struct{}{}
	}

	picks := s.rnd.Perm(len(labels))
	count := profile.ActiveCount
	if count > len(labels) {
		count = len(labels)
	}
	for _, i := range picks[:count] {
		set.active[labels[i]] = struct{}{}
	}

	s.current.Store(set)
	logging.Info("endpoint rotated: %d labels, %d active", len(set.labels), len(set.active))
}

// Run rotates on the profile interval until the context is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.gen.Profile().RotateInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Rotate()
		}
	}
}

// HandleConnection decides the response for a connection addressed to
// domain. The allowlist is checked on the full domain before any label
// matching, so an allowlisted name can never be treated as C2.
func (s *Simulator) HandleConnection(domain string) Decision {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))

	if _, ok := s.allowed[domain]; ok {
		return Decision{
			Response: ResponseGreeting,
			Body:     "hi from " + domain,
		}
	}

	label := domain
	if i := strings.LastIndex(domain, "."); i >= 0 {
		label = domain[:i]
	}

	set := s.current.Load()
	if set == nil {
		return Decision{Response: ResponseDropped, Reason: "unknown"}
	}

	if _, ok := set.active[label]; ok {
		return Decision{
			Response: ResponseC2,
			Body:     "C2 server connected",
		}
	}

	// In the batch but not active: a domain the generator produced for
	// this window that the endpoint chose not to stand up.
	if _, ok := set.labels[label]; ok {
		return Decision{Response: ResponseDropped, Reason: "inactive"}
	}

	return Decision{Response: ResponseDropped, Reason: "unknown"}
}

// Health reports the rotation state for the simulator's /health endpoint.
func (s *Simulator) Health() map[string]interface{} {
	set := s.current.Load()
	if set == nil {
		return map[string]interface{}{"status": "ok", "labels_count": 0, "active_count": 0}
	}

	sample := make([]string, 0, len(set.active))
	for l := range set.active {
		sample = append(sample, l)
	}
	sort.Strings(sample)
	if len(sample) > 5 {
		sample = sample[:5]
	}

	return map[string]interface{}{
		"status":        "ok",
		"labels_count":  len(set.labels),
		"active_count":  len(set.active),
		"active_sample": sample,
	}
}
