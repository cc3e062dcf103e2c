// Package stream implements the append-only check-in log: ordered,
// timestamped entries addressed by strictly increasing ids, with a bounded
// blocking "next entry after position X" read used by the processor to tail
// the log without polling hot.
package stream

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

const streamSchema = `
CREATE TABLE IF NOT EXISTS stream_v1 (
	stream TEXT NOT NULL,
	ts_ms INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	fields JSONB NOT NULL,
	PRIMARY KEY (stream, ts_ms, seq)
);
`

const insertEntrySql = `
INSERT INTO stream_v1 (stream, ts_ms, seq, fields)
VALUES ($1, $2, $3, $4);
`

const getLastIdSql = `
SELECT ts_ms, seq FROM stream_v1
WHERE stream = $1
ORDER BY ts_ms DESC, seq DESC LIMIT 1;
`

const getNextEntrySql = `
SELECT ts_ms, seq, fields FROM stream_v1
WHERE stream = $1 AND (ts_ms > $2 OR (ts_ms = $2 AND seq > $3))
ORDER BY ts_ms ASC, seq ASC LIMIT 1;
`

// repollInterval bounds how stale a blocked reader can be when entries are
// appended by another process, which the in-process wakeup cannot see.
const repollInterval = 250 * time.Millisecond

// Entry is one record of the log: its position and the flat bag of untyped
// string fields it was appended with.
type Entry struct {
	ID     EntryID
	Fields map[string]string
}

// Log is an append-only stream stored in the shared sqlite database. A single
// Log value may serve concurrent appenders and readers within one process.
type Log struct {
	db   *sqlx.DB
	name string

	mu          sync.Mutex
	lastId      EntryID
	subscribers []chan struct{}

	// now is swappable for tests
	now func() time.Time
}

// Open initializes the stream schema and returns a handle on the named
// stream, positioned after any entries already present.
func Open(db *sqlx.DB, name string) (*Log, error) {
	if _, err := db.Exec(streamSchema); err != nil {
		return nil, fmt.Errorf("failed to create stream table: %w", err)
	}

	log := &Log{db: db, name: name, now: time.Now}
	var last struct {
		TsMs int64 `db:"ts_ms"`
		Seq  int64 `db:"seq"`
	}
	err := db.Get(&last, getLastIdSql, name)
	if err == nil {
		log.lastId = EntryID{Ms: last.TsMs, Seq: last.Seq}
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read last stream id: %w", err)
	}
	return log, nil
}

// nextId assigns the id after lastId for an entry appended now. The caller
// must hold mu. When the clock has not advanced past the last entry's
// millisecond (or has moved backwards), the sequence number increments so ids
// remain strictly monotonic.
func (l *Log) nextId() EntryID {
	ms := l.now().UnixMilli()
	if ms <= l.lastId.Ms {
		return EntryID{Ms: l.lastId.Ms, Seq: l.lastId.Seq + 1}
	}
	return EntryID{Ms: ms, Seq: 0}
}

// Append adds one entry to the end of the log and returns its assigned id.
func (l *Log) Append(ctx context.Context, fields map[string]string) (EntryID, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return EntryID{}, fmt.Errorf("failed to encode entry fields: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextId()
	_, err = l.db.ExecContext(ctx, insertEntrySql, l.name, id.Ms, id.Seq, data)
	if err != nil {
		return EntryID{}, fmt.Errorf("failed to append to stream %s: %w", l.name, err)
	}
	l.lastId = id
	l.notifyLocked()
	return id, nil
}

// AppendAll adds a batch of entries in order within a single transaction.
// Used by the bulk loader; readers observe either none or all of the batch.
func (l *Log) AppendAll(ctx context.Context, batch []map[string]string) ([]EntryID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin stream transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]EntryID, 0, len(batch))
	for _, fields := range batch {
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entry fields: %w", err)
		}
		id := l.nextId()
		if _, err := tx.ExecContext(ctx, insertEntrySql, l.name, id.Ms, id.Seq, data); err != nil {
			return nil, fmt.Errorf("failed to append to stream %s: %w", l.name, err)
		}
		l.lastId = id
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stream batch: %w", err)
	}
	l.notifyLocked()
	return ids, nil
}

// Next returns the first entry with an id after the given position, blocking
// for up to wait if no such entry exists yet. A nil entry with a nil error
// means the wait elapsed with nothing to deliver.
func (l *Log) Next(ctx context.Context, after EntryID, wait time.Duration) (*Entry, error) {
	deadline := time.Now().Add(wait)
	for {
		entry, err := l.readNext(ctx, after)
		if err != nil || entry != nil {
			return entry, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if remaining > repollInterval {
			remaining = repollInterval
		}

		wakeup := l.subscribe()
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.unsubscribe(wakeup)
			return nil, ctx.Err()
		case <-wakeup:
			timer.Stop()
		case <-timer.C:
		}
		l.unsubscribe(wakeup)
	}
}

func (l *Log) readNext(ctx context.Context, after EntryID) (*Entry, error) {
	var row struct {
		TsMs   int64  `db:"ts_ms"`
		Seq    int64  `db:"seq"`
		Fields []byte `db:"fields"`
	}
	err := l.db.GetContext(ctx, &row, getNextEntrySql, l.name, after.Ms, after.Seq)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %s after %s: %w", l.name, after, err)
	}

	fields := make(map[string]string)
	if err := json.Unmarshal(row.Fields, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode entry fields: %w", err)
	}
	return &Entry{ID: EntryID{Ms: row.TsMs, Seq: row.Seq}, Fields: fields}, nil
}

func (l *Log) subscribe() chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan struct{}, 1)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

func (l *Log) unsubscribe(ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, subscriber := range l.subscribers {
		if subscriber == ch {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			return
		}
	}
}

// notifyLocked wakes any blocked readers. The caller must hold mu. Sends are
// non-blocking; a reader that misses the signal catches up on its next poll.
func (l *Log) notifyLocked() {
	for _, subscriber := range l.subscribers {
		select {
		case subscriber <- struct{}{}:
		default:
		}
	}
}
