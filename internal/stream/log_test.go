package stream

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	dbPath := path.Join(t.TempDir(), "test_stream.db")
	db := sqlx.MustConnect("sqlite3", dbPath)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestParseEntryID(t *testing.T) {
	id, err := ParseEntryID("1724000000123-4")
	if err != nil {
		t.Fatalf("ParseEntryID returned error: %v", err)
	}
	if id.Ms != 1724000000123 || id.Seq != 4 {
		t.Fatalf("ParseEntryID = %+v", id)
	}
	if id.String() != "1724000000123-4" {
		t.Errorf("String() = %q", id.String())
	}

	for _, bad := range []string{"", "123", "a-b", "1-", "-2"} {
		if _, err := ParseEntryID(bad); err == nil {
			t.Errorf("ParseEntryID(%q) succeeded, want error", bad)
		}
	}
}

func TestAppendAssignsMonotonicIds(t *testing.T) {
	db := setupTestDB(t)
	log, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	// Freeze the clock so every append lands in the same millisecond.
	frozen := time.UnixMilli(1724000000000)
	log.now = func() time.Time { return frozen }

	ctx := context.Background()
	var prev EntryID
	for i := 0; i < 5; i++ {
		id, err := log.Append(ctx, map[string]string{"n": "x"})
		if err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
		if !prev.Before(id) {
			t.Fatalf("id %s not after previous %s", id, prev)
		}
		prev = id
	}
	if prev.Ms != frozen.UnixMilli() || prev.Seq != 4 {
		t.Errorf("final id = %s, want %d-4", prev, frozen.UnixMilli())
	}
}

func TestAppendSurvivesClockRegression(t *testing.T) {
	db := setupTestDB(t)
	log, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx := context.Background()
	log.now = func() time.Time { return time.UnixMilli(2000) }
	first, err := log.Append(ctx, map[string]string{"n": "a"})
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	log.now = func() time.Time { return time.UnixMilli(1000) }
	second, err := log.Append(ctx, map[string]string{"n": "b"})
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if !first.Before(second) {
		t.Fatalf("id %s not after %s despite clock regression", second, first)
	}
}

func TestNextReplaysFromBeginning(t *testing.T) {
	db := setupTestDB(t)
	log, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx := context.Background()
	ids, err := log.AppendAll(ctx, []map[string]string{
		{"n": "a"}, {"n": "b"}, {"n": "c"},
	})
	if err != nil {
		t.Fatalf("AppendAll returned error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("AppendAll returned %d ids, want 3", len(ids))
	}

	cursor := Beginning
	for i, want := range []string{"a", "b", "c"} {
		entry, err := log.Next(ctx, cursor, time.Second)
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		if entry == nil {
			t.Fatalf("Next returned no entry at position %d", i)
		}
		if entry.ID != ids[i] {
			t.Errorf("entry %d id = %s, want %s", i, entry.ID, ids[i])
		}
		if entry.Fields["n"] != want {
			t.Errorf("entry %d field n = %q, want %q", i, entry.Fields["n"], want)
		}
		cursor = entry.ID
	}
}

func TestNextSkipsEntriesAtOrBeforeCursor(t *testing.T) {
	db := setupTestDB(t)
	log, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx := context.Background()
	ids, err := log.AppendAll(ctx, []map[string]string{
		{"n": "a"}, {"n": "b"}, {"n": "c"},
	})
	if err != nil {
		t.Fatalf("AppendAll returned error: %v", err)
	}

	entry, err := log.Next(ctx, ids[1], time.Second)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if entry == nil || entry.ID != ids[2] {
		t.Fatalf("Next after %s = %v, want entry %s", ids[1], entry, ids[2])
	}
}

func TestNextTimesOutWhenEmpty(t *testing.T) {
	db := setupTestDB(t)
	log, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	start := time.Now()
	entry, err := log.Next(context.Background(), Beginning, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if entry != nil {
		t.Fatalf("Next returned entry %v from empty stream", entry)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Next returned after %v, want at least the 50ms wait", elapsed)
	}
}

func TestNextWakesOnAppend(t *testing.T) {
	db := setupTestDB(t)
	log, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx := context.Background()
	go func() {
		time.Sleep(20 * time.Millisecond)
		log.Append(ctx, map[string]string{"n": "late"})
	}()

	entry, err := log.Next(ctx, Beginning, 5*time.Second)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if entry == nil || entry.Fields["n"] != "late" {
		t.Fatalf("Next = %v, want the appended entry", entry)
	}
}

func TestNextHonorsContextCancellation(t *testing.T) {
	db := setupTestDB(t)
	log, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = log.Next(ctx, Beginning, time.Minute)
	if err != context.Canceled {
		t.Fatalf("Next returned %v, want context.Canceled", err)
	}
}

func TestOpenResumesAfterExistingEntries(t *testing.T) {
	db := setupTestDB(t)
	log, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ctx := context.Background()
	last, err := log.Append(ctx, map[string]string{"n": "a"})
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	// A second handle over the same table must keep assigning ids after the
	// entries already present.
	reopened, err := Open(db, "checkins")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	reopened.now = func() time.Time { return time.UnixMilli(0) }
	next, err := reopened.Append(ctx, map[string]string{"n": "b"})
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if !last.Before(next) {
		t.Fatalf("reopened log assigned %s, not after %s", next, last)
	}
}
