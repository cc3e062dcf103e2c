// Package checkin defines the check-in event record and the typed decode of
// the flat field bags delivered by the stream.
package checkin

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/venuepulse/venuepulse/internal/stream"
)

// Field names used on the wire.
const (
	FieldLocationID = "locationId"
	FieldUserID     = "userId"
	FieldStarRating = "starRating"
)

// ErrMissingField marks a check-in entry missing a required field. The
// processor treats this as fatal; there is no partial-event tolerance.
var ErrMissingField = errors.New("missing required field")

// Event is one decoded check-in. LocationID and UserID are opaque keys into
// the entity stores and are never interpreted; StarRating is 1-5 in the
// domain but not enforced here. Timestamp is derived from the entry id.
type Event struct {
	ID         stream.EntryID
	LocationID string
	UserID     string
	StarRating int
	Timestamp  time.Time
}

// Decode converts a stream entry's untyped field bag into a typed Event.
// starRating is coerced to a number; the id fields stay opaque strings.
func Decode(id stream.EntryID, fields map[string]string) (Event, error) {
	locationId, ok := fields[FieldLocationID]
	if !ok {
		return Event{}, fmt.Errorf("check-in %s: %w: %s", id, ErrMissingField, FieldLocationID)
	}
	userId, ok := fields[FieldUserID]
	if !ok {
		return Event{}, fmt.Errorf("check-in %s: %w: %s", id, ErrMissingField, FieldUserID)
	}
	rawRating, ok := fields[FieldStarRating]
	if !ok {
		return Event{}, fmt.Errorf("check-in %s: %w: %s", id, ErrMissingField, FieldStarRating)
	}
	starRating, err := strconv.Atoi(rawRating)
	if err != nil {
		return Event{}, fmt.Errorf("check-in %s: invalid starRating %q: %w", id, rawRating, err)
	}

	return Event{
		ID:         id,
		LocationID: locationId,
		UserID:     userId,
		StarRating: starRating,
		Timestamp:  id.Time(),
	}, nil
}

// Fields renders the event back into the wire form used by the stream. The
// loader uses this when appending seed check-ins.
func (e Event) Fields() map[string]string {
	return map[string]string{
		FieldLocationID: e.LocationID,
		FieldUserID:     e.UserID,
		FieldStarRating: strconv.Itoa(e.StarRating),
	}
}
