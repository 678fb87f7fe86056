package database

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
)

// Override states. An override forces the final verdict of a domain until
// it is changed or removed; "blocked" forces DGA, "unblocked" forces
// NOT_DGA.
const (
	StateBlocked   = "blocked"
	StateUnblocked = "unblocked"
)

// parseStoredTime reads a persisted RFC3339Nano timestamp. Rows whose
// timestamp no longer parses are logged rather than silently read back as
// the zero time.
func parseStoredTime(raw, table, key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		logging.Warn("corrupt timestamp %q in %s row %s: %v", raw, table, key, err)
	}
	return t
}

// ValidState reports whether s is a usable override state.
func ValidState(s string) bool {
	return s == StateBlocked || s == StateUnblocked
}

// OverrideEntry is one persisted manual decision. At most one entry exists
// per domain; writes are last-write-wins.
type OverrideEntry struct {
	Domain    string    `json:"domain"`
	State     string    `json:"state"`
	Actor     string    `json:"actor"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueryRecord is one append-only entry of the query log. Records are never
// mutated after insertion.
type QueryRecord struct {
	ID              string    `json:"id"`
	Domain          string    `json:"domain"`
	Features        string    `json:"features"` // JSON-encoded feature vector, empty on extraction failure
	ModelLabel      string    `json:"model_label"`
	ModelConfidence float64   `json:"model_confidence"`
	OverrideApplied bool      `json:"override_applied"`
	FinalVerdict    string    `json:"final_verdict"`
	Reason          string    `json:"reason"`
	Origin          string    `json:"origin"` // "generated" or "user"
	Timestamp       time.Time `json:"timestamp"`
}

// SQLiteDB wraps the lab database. The mutex serializes writers against
// readers so a verdict computation never observes a torn override write.
type SQLiteDB struct {
	db *sql.DB
	mu sync.RWMutex
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// SetOverride upserts the manual decision for a domain (last write wins).
func (s *SQLiteDB) SetOverride(domain, state, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO overrides (domain, state, actor, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET
			state = excluded.state,
			actor = excluded.actor,
			updated_at = excluded.updated_at`,
		domain, state, actor, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetOverride returns the active override for a domain, if any.
func (s *SQLiteDB) GetOverride(domain string) (OverrideEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry OverrideEntry
	var updatedAt string
	err := s.db.QueryRow(
		`SELECT domain, state, COALESCE(actor, ''), updated_at
		 FROM overrides WHERE domain = ?`,
		domain,
	).Scan(&entry.Domain, &entry.State, &entry.Actor, &updatedAt)

	if err == sql.ErrNoRows {
		return OverrideEntry{}, false, nil
	}
	if err != nil {
		return OverrideEntry{}, false, err
	}

	entry.UpdatedAt = parseStoredTime(updatedAt, "overrides", entry.Domain)
	return entry, true, nil
}

// RemoveOverride deletes a domain's override. Returns false when no entry
// existed.
func (s *SQLiteDB) RemoveOverride(domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM overrides WHERE domain = ?`, domain)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// ListOverrides returns all active overrides, most recently updated first.
func (s *SQLiteDB) ListOverrides() ([]OverrideEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT domain, state, COALESCE(actor, ''), updated_at
		 FROM overrides ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []OverrideEntry
	for rows.Next() {
		var entry OverrideEntry
		var updatedAt string
		if err := rows.Scan(&entry.Domain, &entry.State, &entry.Actor, &updatedAt); err != nil {
			return nil, err
		}
		entry.UpdatedAt = parseStoredTime(updatedAt, "overrides", entry.Domain)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// AppendQueryRecord inserts one query log record. The record's ID and
// timestamp are filled in when empty.
func (s *SQLiteDB) AppendQueryRecord(rec *QueryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO query_log
			(id, domain, features, model_label, model_confidence, override_applied, final_verdict, reason, origin, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Domain, rec.Features, rec.ModelLabel, rec.ModelConfidence,
		rec.OverrideApplied, rec.FinalVerdict, rec.Reason, rec.Origin,
		rec.Timestamp.Format(time.RFC3339Nano),
	)
	return err
}

// GetRecentQueries returns up to limit query records, newest first.
func (s *SQLiteDB) GetRecentQueries(limit int) ([]QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, domain, COALESCE(features, ''), COALESCE(model_label, ''), model_confidence,
				override_applied, final_verdict, COALESCE(reason, ''), COALESCE(origin, ''), timestamp
		 FROM query_log
		 ORDER BY rowid DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		var ts string
		if err := rows.Scan(&rec.ID, &rec.Domain, &rec.Features, &rec.ModelLabel,
			&rec.ModelConfidence, &rec.OverrideApplied, &rec.FinalVerdict,
			&rec.Reason, &rec.Origin, &ts); err != nil {
			return nil, err
		}
		rec.Timestamp = parseStoredTime(ts, "query_log", rec.ID)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// VerdictCounts returns how many logged queries ended in each final verdict.
func (s *SQLiteDB) VerdictCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT final_verdict, COUNT(*) FROM query_log GROUP BY final_verdict`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var verdict string
		var n int64
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, err
		}
		counts[verdict] = n
	}

	return counts, rows.Err()
}

// GetDB returns the underlying *sql.DB connection
func (s *SQLiteDB) GetDB() *sql.DB {
	return s.db
}
