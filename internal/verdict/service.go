// Package verdict orchestrates feature extraction, classification and the
// override store into the final decision for each queried domain.
package verdict

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/abhijithsuren/dga-lab-v2/internal/alerting"
	"github.com/abhijithsuren/dga-lab-v2/internal/classifier"
	"github.com/abhijithsuren/dga-lab-v2/internal/database"
	"github.com/abhijithsuren/dga-lab-v2/internal/features"
	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
	"github.com/abhijithsuren/dga-lab-v2/internal/metrics"
)

// Verdict is the detector's final classification of a domain. UNKNOWN is
// the explicit failure verdict; it is never silently mapped to DGA or
// NOT_DGA.
type Verdict string

const (
	VerdictDGA     Verdict = "DGA"
	VerdictNotDGA  Verdict = "NOT_DGA"
	VerdictUnknown Verdict = "UNKNOWN"
)

// Source tags where a verdict came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceOverride Source = "override"
	SourceFallback Source = "fallback"
	SourceError    Source = "error"
)

// Reason codes recorded with each query.
const (
	ReasonOK            = "ok"
	ReasonInvalidDomain = "invalid_domain"
	ReasonModelError    = "model_error"
	ReasonStoreDegraded = "override_store_degraded"
)

// Origins of a query.
const (
	OriginGenerated = "generated"
	OriginUser      = "user"
)

// Result is what a check returns to the caller.
type Result struct {
	Verdict    Verdict `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// Service owns the verdict pipeline. It is the only writer of the query
// log; the override store is written solely through the manual-action
// methods below.
type Service struct {
	clf       *classifier.Classifier
	db        *database.SQLiteDB
	collector *metrics.Collector
	alerter   *alerting.Notifier

	mu        sync.Mutex
	recent    []database.QueryRecord
	maxRecent int
}

// NewService wires the pipeline. maxRecent bounds the in-memory ring of
// recent queries served to the dashboard.
func NewService(clf *classifier.Classifier, db *database.SQLiteDB, collector *metrics.Collector, maxRecent int) *Service {
	if maxRecent <= 0 {
		maxRecent = 200
	}
	return &Service{
		clf:       clf,
		db:        db,
		collector: collector,
		maxRecent: maxRecent,
	}
}

// Evaluate runs one domain through the pipeline and returns the final
// verdict. Every call appends exactly one query record; the call never
// fails from the caller's point of view: extraction, model and store
// problems all collapse into the verdict itself.
func (s *Service) Evaluate(domain, origin string) Result {
	s.collector.IncChecks()

	normalized := features.Normalize(domain)
	record := database.QueryRecord{
		Domain: normalized,
		Origin: origin,
	}
	if normalized == "" {
		record.Domain = domain
	}

	// Feature extraction. Failure short-circuits straight to UNKNOWN.
	vec, err := features.Extract(domain)
	if err != nil {
		s.collector.IncInvalidDomain()
		logging.Warn("feature extraction failed for %q: %v", domain, err)
		return s.finish(record, Result{Verdict: VerdictUnknown, Source: SourceError}, ReasonInvalidDomain)
	}
	if encoded, err := json.Marshal(vec); err == nil {
		record.Features = string(encoded)
	}

	// Classification.
	label, confidence, err := s.clf.Classify(vec)
	if err != nil {
		s.collector.IncModelError()
		logging.Warn("classification failed for %q: %v", normalized, err)
		return s.finish(record, Result{Verdict: VerdictUnknown, Source: SourceError}, ReasonModelError)
	}
	record.ModelLabel = label.String()
	record.ModelConfidence = confidence

	modelVerdict := VerdictNotDGA
	if label == classifier.LabelDGA {
		modelVerdict = VerdictDGA
	}
	modelSource := SourceModel
	if s.clf.Degraded() {
		modelSource = SourceFallback
	}

	// Override check. A store failure degrades to "no override" and must
	// never abort the request.
	reason := ReasonOK
	entry, found, err := s.db.GetOverride(normalized)
	if err != nil {
		s.collector.IncStoreError()
		logging.Warn("override store unreachable for %q, treating as no override: %v", normalized, err)
		found = false
		reason = ReasonStoreDegraded
	}

	result := Result{Verdict: modelVerdict, Confidence: confidence, Source: modelSource}
	if found {
		record.OverrideApplied = true
		s.collector.IncOverrideApplied()
		result = Result{Confidence: 1.0, Source: SourceOverride}
		if entry.State == database.StateBlocked {
			result.Verdict = VerdictDGA
		} else {
			result.Verdict = VerdictNotDGA
		}
	}

	return s.finish(record, result, reason)
}

// finish logs the record, updates counters and returns the result.
func (s *Service) finish(record database.QueryRecord, result Result, reason string) Result {
	record.FinalVerdict = string(result.Verdict)
	record.Reason = reason

	if err := s.db.AppendQueryRecord(&record); err != nil {
		logging.Error("cannot persist query record for %q: %v", record.Domain, err)
	}
	s.remember(record)

	s.collector.IncVerdict(string(result.Verdict))
	logging.Verdict(record.Domain, string(result.Verdict), result.Confidence, string(result.Source))

	if result.Verdict == VerdictDGA && s.alerter.Enabled() {
		go s.alerter.Notify(alerting.Alert{
			Domain:     record.Domain,
			Verdict:    string(result.Verdict),
			Confidence: result.Confidence,
			Source:     string(result.Source),
			Origin:     record.Origin,
			Timestamp:  record.Timestamp,
		})
	}
	return result
}

// SetAlerter attaches a webhook notifier for DGA verdicts. Safe to leave
// unset; alerts are then skipped.
func (s *Service) SetAlerter(alerter *alerting.Notifier) {
	s.alerter = alerter
}

func (s *Service) remember(record database.QueryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, record)
	if len(s.recent) > s.maxRecent {
		s.recent = s.recent[len(s.recent)-s.maxRecent:]
	}
}

// RecentQueries returns up to limit recent records, newest first.
func (s *Service) RecentQueries(limit int) []database.QueryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.recent)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]database.QueryRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

// Override records a manual decision for a domain. This is the only write
// path into the override store.
func (s *Service) Override(domain, state, actor string) error {
	normalized := features.Normalize(domain)
	if normalized == "" {
		return errors.New("override: empty domain")
	}
	if !database.ValidState(state) {
		return fmt.Errorf("override: invalid state %q", state)
	}

	if err := s.db.SetOverride(normalized, state, actor); err != nil {
		return fmt.Errorf("override: %w", err)
	}

	s.collector.IncOverrideWrite()
	logging.Info("manual override: %s => %s (actor=%s)", normalized, state, actor)
	return nil
}

// ClearOverride removes a domain's manual decision, handing the verdict
// back to the classifier. Returns false when no override existed.
func (s *Service) ClearOverride(domain string) (bool, error) {
	normalized := features.Normalize(domain)
	if normalized == "" {
		return false, errors.New("override: empty domain")
	}

	removed, err := s.db.RemoveOverride(normalized)
	if err != nil {
		return false, fmt.Errorf("override: %w", err)
	}
	if removed {
		logging.Info("manual override cleared: %s", normalized)
	}
	return removed, nil
}

// Overrides lists the persisted manual decisions.
func (s *Service) Overrides() ([]database.OverrideEntry, error) {
	return s.db.ListOverrides()
}

// ModelLoaded reports whether the decision tree model is live (for health
// reporting).
func (s *Service) ModelLoaded() bool {
	return s.clf.Loaded()
}
