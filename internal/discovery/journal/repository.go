package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const defaultListLimit = 100

// Sighting is one observation of a discovered service by the scan component.
type Sighting struct {
	Fingerprint string
	Service     string
	Info        map[string]any
	Outcome     string
	SeenAt      time.Time
}

// Entry is the journal row for one fingerprint.
type Entry struct {
	Fingerprint string         `json:"fingerprint"`
	Service     string         `json:"service"`
	Info        map[string]any `json:"info"`
	Outcome     string         `json:"outcome"`
	FirstSeen   time.Time      `json:"first_seen"`
	LastSeen    time.Time      `json:"last_seen"`
	Sightings   int            `json:"sightings"`
}

// Repository persists discovery sightings.
type Repository interface {
	// Record inserts a new entry or bumps the sighting count of an existing one.
	Record(ctx context.Context, s Sighting) error

	// List returns entries, most recently seen first.
	// A limit of zero or less uses the default of 100.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Get returns the entry for a fingerprint.
	// Returns ErrNotFound if the fingerprint was never recorded.
	Get(ctx context.Context, fingerprint string) (*Entry, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal backed by db.
// The discovery_journal migration must have been applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts or updates the entry for s.Fingerprint.
func (r *SQLiteRepository) Record(ctx context.Context, s Sighting) error {
	if s.Fingerprint == "" || s.Service == "" {
		return ErrInvalidSighting
	}

	info := s.Info
	if info == nil {
		info = map[string]any{}
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshalling info: %w", err)
	}

	seen := s.SeenAt
	if seen.IsZero() {
		seen = time.Now()
	}
	ts := seen.UTC().Format(time.RFC3339)

	query := `
		INSERT INTO discovery_journal (fingerprint, service, info, outcome, first_seen, last_seen, sightings)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(fingerprint) DO UPDATE SET
			outcome = excluded.outcome,
			last_seen = excluded.last_seen,
			sightings = sightings + 1`

	if _, err := r.db.ExecContext(ctx, query,
		s.Fingerprint, s.Service, string(infoJSON), s.Outcome, ts, ts,
	); err != nil {
		return fmt.Errorf("recording sighting: %w", err)
	}
	return nil
}

// List returns entries ordered by last sighting, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT fingerprint, service, info, outcome, first_seen, last_seen, sightings
		FROM discovery_journal
		ORDER BY last_seen DESC, fingerprint
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

// Get returns the entry for a fingerprint.
func (r *SQLiteRepository) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	query := `
		SELECT fingerprint, service, info, outcome, first_seen, last_seen, sightings
		FROM discovery_journal
		WHERE fingerprint = ?`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, fingerprint))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                   Entry
		infoJSON            string
		firstSeen, lastSeen string
	)

	if err := row.Scan(&e.Fingerprint, &e.Service, &infoJSON, &e.Outcome, &firstSeen, &lastSeen, &e.Sightings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning journal entry: %w", err)
	}

	if err := json.Unmarshal([]byte(infoJSON), &e.Info); err != nil {
		return nil, fmt.Errorf("parsing info for %s: %w", e.Fingerprint, err)
	}

	var err error
	if e.FirstSeen, err = time.Parse(time.RFC3339, firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	if e.LastSeen, err = time.Parse(time.RFC3339, lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	return &e, nil
}
