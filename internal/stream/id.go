package stream

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntryID identifies a single entry in the check-in log. IDs are strictly
// monotonically increasing: a millisecond timestamp plus a per-millisecond
// sequence number, serialized as "<ms>-<seq>". The zero value means the
// beginning of the log.
type EntryID struct {
	Ms  int64
	Seq int64
}

// Beginning is the position before the first entry; reading after it replays
// the full history.
var Beginning = EntryID{}

func (id EntryID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

// Before reports whether id is ordered strictly before other.
func (id EntryID) Before(other EntryID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// IsZero reports whether id is the beginning-of-log position.
func (id EntryID) IsZero() bool {
	return id == EntryID{}
}

// Time returns the timestamp encoded in the id.
func (id EntryID) Time() time.Time {
	return time.UnixMilli(id.Ms)
}

// ParseEntryID parses the "<ms>-<seq>" form.
func ParseEntryID(s string) (EntryID, error) {
	ms, seq, ok := strings.Cut(s, "-")
	if !ok {
		return EntryID{}, fmt.Errorf("malformed entry id %q", s)
	}
	msVal, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return EntryID{}, fmt.Errorf("malformed entry id %q: %w", s, err)
	}
	seqVal, err := strconv.ParseInt(seq, 10, 64)
	if err != nil {
		return EntryID{}, fmt.Errorf("malformed entry id %q: %w", s, err)
	}
	return EntryID{Ms: msVal, Seq: seqVal}, nil
}
