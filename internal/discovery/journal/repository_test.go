package journal

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the journal table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE discovery_journal (
			fingerprint TEXT PRIMARY KEY,
			service TEXT NOT NULL,
			info TEXT NOT NULL DEFAULT '{}',
			outcome TEXT NOT NULL,
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL,
			sightings INTEGER NOT NULL DEFAULT 1
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestRecord_InsertThenUpdate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	first := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Minute)

	s := Sighting{
		Fingerprint: "fp1",
		Service:     "plex_mediaserver",
		Info:        map[string]any{"host": "10.0.0.7", "port": float64(32400)},
		Outcome:     "dispatched",
		SeenAt:      first,
	}
	if err := repo.Record(ctx, s); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	s.Outcome = "duplicate"
	s.SeenAt = second
	if err := repo.Record(ctx, s); err != nil {
		t.Fatalf("second Record() error = %v", err)
	}

	got, err := repo.Get(ctx, "fp1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Sightings != 2 {
		t.Errorf("Sightings = %d, want 2", got.Sightings)
	}
	if got.Outcome != "duplicate" {
		t.Errorf("Outcome = %q, want duplicate", got.Outcome)
	}
	if !got.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want %v", got.FirstSeen, first)
	}
	if !got.LastSeen.Equal(second) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, second)
	}
	if got.Info["host"] != "10.0.0.7" || got.Info["port"] != float64(32400) {
		t.Errorf("Info = %v", got.Info)
	}
}

func TestRecord_Invalid(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.Record(context.Background(), Sighting{Service: "daikin"})
	if !errors.Is(err, ErrInvalidSighting) {
		t.Errorf("Record() error = %v, want ErrInvalidSighting", err)
	}
}

func TestRecord_NilInfo(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Record(ctx, Sighting{Fingerprint: "fp", Service: "daikin", Outcome: "ignored"}); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(ctx, "fp")
	if err != nil {
		t.Fatal(err)
	}
	if got.Info == nil || len(got.Info) != 0 {
		t.Errorf("Info = %v, want empty map", got.Info)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i, fp := range []string{"a", "b", "c"} {
		err := repo.Record(ctx, Sighting{
			Fingerprint: fp,
			Service:     "kodi",
			Outcome:     "dispatched",
			SeenAt:      base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	entries, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Fingerprint != "c" || entries[1].Fingerprint != "b" {
		t.Errorf("order = [%s %s], want [c b]", entries[0].Fingerprint, entries[1].Fingerprint)
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("List(0) len = %d, want 3", len(all))
	}
}
