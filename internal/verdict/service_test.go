package verdict

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijithsuren/dga-lab-v2/internal/classifier"
	"github.com/abhijithsuren/dga-lab-v2/internal/database"
	"github.com/abhijithsuren/dga-lab-v2/internal/metrics"
)

// newTestService builds a service on the rule-based fallback classifier
// and a throwaway database, which keeps the verdicts predictable.
func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := database.InitializeDatabase(filepath.Join(t.TempDir(), "verdict.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clf, _ := classifier.Load("", classifier.DefaultFallbackThresholds())
	return NewService(clf, db, metrics.NewCollector(), 50)
}

func TestEvaluateBenign(t *testing.T) {
	svc := newTestService(t)

	result := svc.Evaluate("google.com", OriginGenerated)
	assert.Equal(t, VerdictNotDGA, result.Verdict)
	assert.Equal(t, SourceFallback, result.Source)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestEvaluateDGA(t *testing.T) {
	svc := newTestService(t)

	result := svc.Evaluate("xj3kd9fz.info", OriginGenerated)
	assert.Equal(t, VerdictDGA, result.Verdict)
	assert.Equal(t, SourceFallback, result.Source)

	records := svc.RecentQueries(1)
	require.Len(t, records, 1)
	assert.False(t, records[0].OverrideApplied)
	assert.Equal(t, ReasonOK, records[0].Reason)
}

func TestStoreFailureDegradesToNoOverride(t *testing.T) {
	db, err := database.InitializeDatabase(filepath.Join(t.TempDir(), "broken.db"))
	require.NoError(t, err)

	clf, _ := classifier.Load("", classifier.DefaultFallbackThresholds())
	svc := NewService(clf, db, metrics.NewCollector(), 50)

	// Kill the store under the live service; the verdict must still come
	// back from the classifier.
	require.NoError(t, db.Close())

	result := svc.Evaluate("xj3kd9fz.info", OriginGenerated)
	assert.Equal(t, VerdictDGA, result.Verdict)
	assert.Equal(t, SourceFallback, result.Source)

	records := svc.RecentQueries(1)
	require.Len(t, records, 1)
	assert.Equal(t, ReasonStoreDegraded, records[0].Reason)
	assert.False(t, records[0].OverrideApplied)
}

func TestEvaluateInvalidDomain(t *testing.T) {
	svc := newTestService(t)

	result := svc.Evaluate("   ", OriginUser)
	assert.Equal(t, VerdictUnknown, result.Verdict)
	assert.Equal(t, SourceError, result.Source)
	assert.Equal(t, 0.0, result.Confidence)

	records := svc.RecentQueries(1)
	require.Len(t, records, 1)
	assert.Equal(t, "invalid_domain", records[0].Reason)
}

func TestOverrideBeatsModel(t *testing.T) {
	svc := newTestService(t)

	// The fallback rule calls this benign; the override must win anyway.
	require.NoError(t, svc.Override("google.com", database.StateBlocked, "analyst"))

	result := svc.Evaluate("google.com", OriginUser)
	assert.Equal(t, VerdictDGA, result.Verdict)
	assert.Equal(t, SourceOverride, result.Source)
	assert.Equal(t, 1.0, result.Confidence)

	records := svc.RecentQueries(1)
	require.Len(t, records, 1)
	assert.True(t, records[0].OverrideApplied)

	// And the reverse: unblock a domain the rule flags.
	require.NoError(t, svc.Override("xj3kd9fz.info", database.StateUnblocked, "analyst"))

	result = svc.Evaluate("xj3kd9fz.info", OriginUser)
	assert.Equal(t, VerdictNotDGA, result.Verdict)
	assert.Equal(t, SourceOverride, result.Source)
}

func TestOverrideMatchesNormalizedDomain(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Override("Evil-Name.com", database.StateBlocked, "analyst"))

	result := svc.Evaluate("  EVIL-NAME.COM. ", OriginUser)
	assert.Equal(t, VerdictDGA, result.Verdict)
	assert.Equal(t, SourceOverride, result.Source)
}

func TestClearOverrideRestoresModelVerdict(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Override("google.com", database.StateBlocked, "analyst"))
	result := svc.Evaluate("google.com", OriginUser)
	require.Equal(t, VerdictDGA, result.Verdict)

	removed, err := svc.ClearOverride("google.com")
	require.NoError(t, err)
	assert.True(t, removed)

	result = svc.Evaluate("google.com", OriginUser)
	assert.Equal(t, VerdictNotDGA, result.Verdict)
	assert.NotEqual(t, SourceOverride, result.Source)
}

func TestOverrideRejectsInvalidState(t *testing.T) {
	svc := newTestService(t)
	assert.Error(t, svc.Override("x.com", "banned", "analyst"))
}

func TestEveryCheckIsLogged(t *testing.T) {
	svc := newTestService(t)

	domains := []string{"google.com", "xj3kd9fz.info", "   ", "facebook.com"}
	for _, d := range domains {
		svc.Evaluate(d, OriginGenerated)
	}

	records := svc.RecentQueries(0)
	require.Len(t, records, len(domains))
	// Newest first.
	assert.Equal(t, "facebook.com", records[0].Domain)
	assert.Equal(t, "google.com", records[len(records)-1].Domain)

	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.NotEmpty(t, rec.FinalVerdict)
		assert.False(t, rec.Timestamp.IsZero())
	}
}

func TestVerdictNotCachedAcrossOverrideChange(t *testing.T) {
	svc := newTestService(t)

	first := svc.Evaluate("facebook.com", OriginGenerated)
	require.Equal(t, VerdictNotDGA, first.Verdict)

	require.NoError(t, svc.Override("facebook.com", database.StateBlocked, "analyst"))

	second := svc.Evaluate("facebook.com", OriginGenerated)
	assert.Equal(t, VerdictDGA, second.Verdict)
}

func TestRecentQueriesLimit(t *testing.T) {
	svc := newTestService(t)

	for i := 0; i < 10; i++ {
		svc.Evaluate("google.com", OriginGenerated)
	}

	assert.Len(t, svc.RecentQueries(3), 3)
	assert.Len(t, svc.RecentQueries(0), 10)
}
