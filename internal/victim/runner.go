package victim

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/abhijithsuren/dga-lab-v2/internal/dga"
	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
	"github.com/abhijithsuren/dga-lab-v2/internal/verdict"
)

// PolicyBlock and PolicyAllow are the fail-state policies for domains the
// detector could not classify or could not be asked about.
const (
	PolicyBlock = "block"
	PolicyAllow = "allow"
)

// Runner generates the victim's traffic. Each cycle it mixes the current
// DGA batch with the benign allowlisted domains, checks every name with
// the detector, and connects through to the endpoint when allowed.
type Runner struct {
	gen           *dga.Generator
	client        *Client
	endpointURL   string
	defaultPolicy string
	interval      time.Duration
	http          *http.Client
	rnd           *rand.Rand
}

func NewRunner(gen *dga.Generator, client *Client, endpointURL, defaultPolicy string, timeout time.Duration) *Runner {
	if defaultPolicy != PolicyAllow {
		defaultPolicy = PolicyBlock
	}
	return &Runner{
		gen:           gen,
		client:        client,
		endpointURL:   endpointURL,
		defaultPolicy: defaultPolicy,
		interval:      gen.Profile().RotateInterval(),
		http:          &http.Client{Timeout: timeout},
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run cycles until the context is cancelled. One cycle per rotation
// window so the victim's batch tracks the endpoint's.
func (r *Runner) Run(ctx context.Context) {
	r.cycle(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	batch := r.buildBatch()
	logging.Info("victim cycle: %d domains", len(batch))

	for _, domain := range batch {
		if ctx.Err() != nil {
			return
		}
		r.handleDomain(ctx, domain)
	}
}

// buildBatch shuffles the generated domains together with the benign
// allowlisted ones so the detector sees a realistic mix.
func (r *Runner) buildBatch() []string {
	profile := r.gen.Profile()
	batch := append(r.gen.NextBatch(), profile.AllowedDomains...)
	r.rnd.Shuffle(len(batch), func(i, j int) {
		batch[i], batch[j] = batch[j], batch[i]
	})
	return batch
}

func (r *Runner) handleDomain(ctx context.Context, domain string) {
	result, err := r.client.Check(ctx, domain)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			logging.Warn("no verdict for %s, applying default policy %q: %v", domain, r.defaultPolicy, err)
			r.applyDefault(ctx, domain)
			return
		}
		logging.Error("check %s: %v", domain, err)
		return
	}

	switch result.Verdict {
	case verdict.VerdictNotDGA:
		r.connect(ctx, domain)
	case verdict.VerdictDGA:
		logging.Info("victim blocked %s (conf=%.3f src=%s)", domain, result.Confidence, result.Source)
	default:
		logging.Warn("verdict UNKNOWN for %s, applying default policy %q", domain, r.defaultPolicy)
		r.applyDefault(ctx, domain)
	}
}

func (r *Runner) applyDefault(ctx context.Context, domain string) {
	if r.defaultPolicy == PolicyAllow {
		r.connect(ctx, domain)
		return
	}
	logging.Info("victim blocked %s (default policy)", domain)
}

// connect issues the request to the endpoint with the domain in the Host
// header, standing in for a DNS lookup plus TCP connect.
func (r *Runner) connect(ctx context.Context, domain string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpointURL, nil)
	if err != nil {
		logging.Error("connect %s: %v", domain, err)
		return
	}
	req.Host = domain

	resp, err := r.http.Do(req)
	if err != nil {
		logging.Warn("connect %s: %v", domain, err)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusOK {
		logging.Info("victim connected to %s: %s", domain, string(body))
	} else {
		logging.Info("victim connection to %s dropped (status %d)", domain, resp.StatusCode)
	}
}
