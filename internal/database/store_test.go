package database

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*SQLiteDB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := InitializeDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func TestOverrideLifecycle(t *testing.T) {
	db, _ := openTestDB(t)

	_, found, err := db.GetOverride("evil.com")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.SetOverride("evil.com", StateBlocked, "analyst"))

	entry, found, err := db.GetOverride("evil.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateBlocked, entry.State)
	assert.Equal(t, "analyst", entry.Actor)
	assert.False(t, entry.UpdatedAt.IsZero())

	removed, err := db.RemoveOverride("evil.com")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = db.RemoveOverride("evil.com")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestOverrideLastWriteWins(t *testing.T) {
	db, _ := openTestDB(t)

	require.NoError(t, db.SetOverride("flip.net", StateBlocked, "first"))
	require.NoError(t, db.SetOverride("flip.net", StateUnblocked, "second"))

	entry, found, err := db.GetOverride("flip.net")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateUnblocked, entry.State)
	assert.Equal(t, "second", entry.Actor)

	entries, err := db.ListOverrides()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOverridePersistsAcrossReopen(t *testing.T) {
	db, path := openTestDB(t)
	require.NoError(t, db.SetOverride("sticky.org", StateBlocked, "analyst"))
	require.NoError(t, db.Close())

	reopened, err := InitializeDatabase(path)
	require.NoError(t, err)
	defer reopened.Close()

	entry, found, err := reopened.GetOverride("sticky.org")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StateBlocked, entry.State)
}

func TestAppendAndGetRecentQueries(t *testing.T) {
	db, _ := openTestDB(t)

	for i := 0; i < 5; i++ {
		rec := QueryRecord{
			Domain:          fmt.Sprintf("d%d.com", i),
			ModelLabel:      "NOT_DGA",
			ModelConfidence: 0.8,
			FinalVerdict:    "NOT_DGA",
			Reason:          "ok",
			Origin:          "generated",
		}
		require.NoError(t, db.AppendQueryRecord(&rec))
		assert.NotEmpty(t, rec.ID)
		assert.False(t, rec.Timestamp.IsZero())
	}

	records, err := db.GetRecentQueries(3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Newest first.
	assert.Equal(t, "d4.com", records[0].Domain)
	assert.Equal(t, "d2.com", records[2].Domain)
}

func TestVerdictCounts(t *testing.T) {
	db, _ := openTestDB(t)

	for _, v := range []string{"DGA", "DGA", "NOT_DGA", "UNKNOWN"} {
		rec := QueryRecord{Domain: "x.com", FinalVerdict: v, Origin: "generated"}
		require.NoError(t, db.AppendQueryRecord(&rec))
	}

	counts, err := db.VerdictCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["DGA"])
	assert.Equal(t, int64(1), counts["NOT_DGA"])
	assert.Equal(t, int64(1), counts["UNKNOWN"])
}

func TestConcurrentWrites(t *testing.T) {
	db, _ := openTestDB(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			domain := fmt.Sprintf("c%d.com", n)
			assert.NoError(t, db.SetOverride(domain, StateBlocked, "worker"))
			rec := QueryRecord{Domain: domain, FinalVerdict: "DGA", Origin: "generated"}
			assert.NoError(t, db.AppendQueryRecord(&rec))
		}(i)
	}
	wg.Wait()

	entries, err := db.ListOverrides()
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	records, err := db.GetRecentQueries(100)
	require.NoError(t, err)
	assert.Len(t, records, 10)
}

func TestCorruptTimestampsAreReadNotFatal(t *testing.T) {
	db, _ := openTestDB(t)

	require.NoError(t, db.SetOverride("mangled.com", StateBlocked, "analyst"))
	rec := QueryRecord{Domain: "mangled.com", FinalVerdict: "DGA", Origin: "generated"}
	require.NoError(t, db.AppendQueryRecord(&rec))

	_, err := db.GetDB().Exec(`UPDATE overrides SET updated_at = 'not-a-time'`)
	require.NoError(t, err)
	_, err = db.GetDB().Exec(`UPDATE query_log SET timestamp = 'garbage'`)
	require.NoError(t, err)

	// Corrupt rows still come back, carrying a zero time.
	entry, found, err := db.GetOverride("mangled.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, entry.UpdatedAt.IsZero())

	entries, err := db.ListOverrides()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].UpdatedAt.IsZero())

	records, err := db.GetRecentQueries(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Timestamp.IsZero())
}

func TestValidState(t *testing.T) {
	assert.True(t, ValidState(StateBlocked))
	assert.True(t, ValidState(StateUnblocked))
	assert.False(t, ValidState("banned"))
	assert.False(t, ValidState(""))
}
