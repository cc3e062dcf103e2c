// Package processor implements the check-in stream consumer. It tails the
// check-in log from a durable cursor, folds each event into the per-user and
// per-location aggregate records, recomputes the location's derived average
// rating, and advances the cursor, indefinitely.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/venuepulse/venuepulse/internal/checkin"
	"github.com/venuepulse/venuepulse/internal/keys"
	"github.com/venuepulse/venuepulse/internal/store"
	"github.com/venuepulse/venuepulse/internal/stream"
)

// Aggregate field names.
const (
	FieldNumCheckins  = "numCheckins"
	FieldNumStars     = "numStars"
	FieldAverageStars = "averageStars"
	FieldLastCheckin  = "lastCheckin"
	FieldLastSeenAt   = "lastSeenAt"
)

// DefaultWaitInterval bounds each blocking read on the stream. Purely a
// liveness mechanism; an expired wait just re-issues the read.
const DefaultWaitInterval = 5 * time.Second

// Config wires a Processor to its collaborators.
type Config struct {
	Stream    *stream.Log
	Records   *store.RecordStore
	Positions *store.PositionStore
	Logger    *slog.Logger

	// WaitInterval overrides DefaultWaitInterval when positive.
	WaitInterval time.Duration

	// StartCursor, when set, overrides the cursor loaded from the position
	// store. Used by tests to inject a starting position.
	StartCursor *stream.EntryID

	// MaxEvents stops the loop after that many events have been processed.
	// Zero means run indefinitely; nonzero is for tests and one-shot tools.
	MaxEvents int
}

// Processor drives the consume loop. Exactly one instance may run against a
// given cursor; a second instance would race it and double-apply or skip
// events.
type Processor struct {
	stream    *stream.Log
	records   *store.RecordStore
	positions *store.PositionStore
	logger    *slog.Logger
	wait      time.Duration
	start     *stream.EntryID
	maxEvents int
}

func New(cfg Config) *Processor {
	wait := cfg.WaitInterval
	if wait <= 0 {
		wait = DefaultWaitInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		stream:    cfg.Stream,
		records:   cfg.Records,
		positions: cfg.Positions,
		logger:    logger,
		wait:      wait,
		start:     cfg.StartCursor,
		maxEvents: cfg.MaxEvents,
	}
}

// Run consumes the stream until the context is cancelled or an error is
// fatal. Absence of new events is not an error; malformed events and store
// failures are, and terminate the loop so a supervisor can restart the
// process. On restart, processing resumes after the last durably written
// cursor, so an event whose counter batch committed but whose cursor write
// did not will have its counters applied a second time.
func (p *Processor) Run(ctx context.Context) error {
	cursor, err := p.loadCursor(ctx)
	if err != nil {
		return err
	}
	if cursor.IsZero() {
		p.logger.Info("starting from the beginning of the check-in stream")
	} else {
		p.logger.Info("resuming check-in stream", "cursor", cursor.String(),
			"note", "counters for any event applied after this cursor will increment again")
	}

	processed := 0
	for {
		if p.maxEvents > 0 && processed >= p.maxEvents {
			return nil
		}
		entry, err := p.stream.Next(ctx, cursor, p.wait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read check-in stream: %w", err)
		}
		if entry == nil {
			p.logger.Info("waiting for more check-ins", "cursor", cursor.String())
			continue
		}

		event, err := checkin.Decode(entry.ID, entry.Fields)
		if err != nil {
			return fmt.Errorf("failed to decode check-in: %w", err)
		}

		average, err := p.apply(ctx, event)
		if err != nil {
			return err
		}

		cursor = event.ID
		processed++
		p.logger.Info("processed check-in", "id", event.ID.String(),
			"userId", event.UserID, "locationId", event.LocationID,
			"starRating", event.StarRating, "averageStars", average)
	}
}

func (p *Processor) loadCursor(ctx context.Context) (stream.EntryID, error) {
	if p.start != nil {
		return *p.start, nil
	}
	raw, ok, err := p.positions.Get(ctx, keys.ProcessorCursor())
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("failed to load processor cursor: %w", err)
	}
	if !ok {
		return stream.Beginning, nil
	}
	cursor, err := stream.ParseEntryID(raw)
	if err != nil {
		return stream.EntryID{}, fmt.Errorf("failed to parse processor cursor: %w", err)
	}
	return cursor, nil
}

// apply folds one event into the aggregates. Two sequential batches, each
// atomic at the store: the counter batch increments the user and location
// counters, then the commit batch writes the derived average and the cursor.
// A crash between the two leaves counters incremented with the cursor
// unadvanced; the event is re-applied on restart.
func (p *Processor) apply(ctx context.Context, event checkin.Event) (int64, error) {
	userKey := keys.User(event.UserID)
	locationKey := keys.Location(event.LocationID)

	counters := store.NewBatch()
	counters.Set(userKey, FieldLastCheckin, strconv.FormatInt(event.Timestamp.UnixMilli(), 10))
	counters.Set(userKey, FieldLastSeenAt, event.LocationID)
	counters.IncrBy(userKey, FieldNumCheckins, 1)
	locationCheckins := counters.IncrBy(locationKey, FieldNumCheckins, 1)
	locationStars := counters.IncrBy(locationKey, FieldNumStars, int64(event.StarRating))
	if err := p.records.Apply(ctx, counters); err != nil {
		return 0, fmt.Errorf("counter batch for check-in %s failed: %w", event.ID, err)
	}

	// The batch results carry the post-increment values, so no extra read is
	// needed. numCheckins is at least 1 here.
	average := roundAverage(locationStars.Value(), locationCheckins.Value())

	commit := store.NewBatch()
	commit.Set(locationKey, FieldAverageStars, strconv.FormatInt(average, 10))
	commit.SetPosition(keys.ProcessorCursor(), event.ID.String())
	if err := p.records.Apply(ctx, commit); err != nil {
		return 0, fmt.Errorf("commit batch for check-in %s failed: %w", event.ID, err)
	}
	return average, nil
}

// roundAverage computes round(stars/checkins) with halves rounded away from
// zero, so two ratings of 1 and 2 average to 2.
func roundAverage(stars, checkins int64) int64 {
	return int64(math.Round(float64(stars) / float64(checkins)))
}
