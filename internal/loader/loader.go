// Package loader implements the one-shot bulk loader. It seeds users,
// locations, and location-detail documents into the record store, rebuilds
// the location search index and the user membership filter, and appends the
// seed check-ins to the stream. Everything here is bulk and sequential; the
// loader runs once and exits.
package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"

	"github.com/venuepulse/venuepulse/internal/checkin"
	"github.com/venuepulse/venuepulse/internal/keys"
	"github.com/venuepulse/venuepulse/internal/store"
	"github.com/venuepulse/venuepulse/internal/stream"
)

// membershipFalsePositiveRate sizes the user membership filter.
const membershipFalsePositiveRate = 0.01

type Loader struct {
	records *store.RecordStore
	stream  *stream.Log
	logger  *slog.Logger
}

func New(records *store.RecordStore, log *stream.Log, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{records: records, stream: log, logger: logger}
}

// Run performs the full bulk load in order: users, membership filter,
// locations and details, search index, check-ins.
func (l *Loader) Run(ctx context.Context, seed *Seed) error {
	userIds, err := l.loadUsers(ctx, seed.Users)
	if err != nil {
		return err
	}
	if err := l.buildMembershipFilter(ctx, userIds); err != nil {
		return err
	}
	if err := l.loadLocations(ctx, seed.Locations); err != nil {
		return err
	}
	if err := l.loadCheckins(ctx, seed.Checkins); err != nil {
		return err
	}
	l.logger.Info("bulk load complete",
		"users", len(seed.Users), "locations", len(seed.Locations),
		"checkins", len(seed.Checkins))
	return nil
}

func (l *Loader) loadUsers(ctx context.Context, users []SeedUser) ([]string, error) {
	ids := make([]string, 0, len(users))
	for _, user := range users {
		id := user.ID
		if id == "" {
			id = uuid.New().String()
		}
		err := l.records.SetAll(ctx, keys.User(id), map[string]string{
			"firstName": user.FirstName,
			"lastName":  user.LastName,
			"email":     user.Email,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load user %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	l.logger.Info("loaded users", "count", len(ids))
	return ids, nil
}

func (l *Loader) buildMembershipFilter(ctx context.Context, userIds []string) error {
	size := uint(len(userIds))
	if size == 0 {
		size = 1
	}
	filter := bloom.NewWithEstimates(size, membershipFalsePositiveRate)
	for _, id := range userIds {
		filter.AddString(id)
	}
	data, err := filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize membership filter: %w", err)
	}
	if err := l.records.PutBlob(ctx, keys.UserMembership(), data); err != nil {
		return fmt.Errorf("failed to store membership filter: %w", err)
	}
	l.logger.Info("built user membership filter", "users", len(userIds))
	return nil
}

func (l *Loader) loadLocations(ctx context.Context, locations []SeedLocation) error {
	index, err := OpenSearchIndex(l.records.DB())
	if err != nil {
		return err
	}

	for _, location := range locations {
		id := location.ID
		if id == "" {
			id = uuid.New().String()
		}
		err := l.records.SetAll(ctx, keys.Location(id), map[string]string{
			"name":     location.Name,
			"category": location.Category,
			"lat":      location.Lat,
			"lng":      location.Lng,
		})
		if err != nil {
			return fmt.Errorf("failed to load location %s: %w", id, err)
		}
		if len(location.Details) > 0 {
			err := l.records.Set(ctx, keys.LocationDetail(id), "json", string(location.Details))
			if err != nil {
				return fmt.Errorf("failed to load location detail %s: %w", id, err)
			}
		}
		if err := index.Add(ctx, id, location.Name, location.Category); err != nil {
			return err
		}
	}
	l.logger.Info("loaded locations", "count", len(locations))
	return nil
}

func (l *Loader) loadCheckins(ctx context.Context, checkins []SeedCheckin) error {
	batch := make([]map[string]string, 0, len(checkins))
	for _, seed := range checkins {
		event := checkin.Event{
			LocationID: seed.LocationID,
			UserID:     seed.UserID,
			StarRating: seed.StarRating,
		}
		batch = append(batch, event.Fields())
	}
	if len(batch) == 0 {
		return nil
	}
	ids, err := l.stream.AppendAll(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to append seed check-ins: %w", err)
	}
	l.logger.Info("appended seed check-ins", "count", len(ids),
		"first", ids[0].String(), "last", ids[len(ids)-1].String())
	return nil
}

// LoadMembership rehydrates the user membership filter built by a previous
// bulk load. Lookups may report false positives at the configured rate but
// never false negatives.
func LoadMembership(ctx context.Context, records *store.RecordStore) (*bloom.BloomFilter, error) {
	data, ok, err := records.GetBlob(ctx, keys.UserMembership())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("membership filter has not been loaded (key %s)", keys.UserMembership())
	}
	filter := &bloom.BloomFilter{}
	if err := filter.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to parse membership filter: %w", err)
	}
	return filter, nil
}
