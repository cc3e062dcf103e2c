// Package keys defines the naming scheme for every durable key in the
// system. All stores (record hashes, the check-in stream, the processor
// cursor, blobs) address their data through these names, so the scheme must
// be deterministic and collision-free across categories.
package keys

import (
	"fmt"
	"strings"
)

// prefix namespaces every key so multiple applications can share a database
// file without clashing.
const prefix = "vp"

// Name builds a key from a category and optional id parts, joined with
// colons. Segments must not contain colons; callers pass literals or
// generated ids, so a violation is a programming error.
func Name(category string, parts ...string) string {
	segments := make([]string, 0, len(parts)+2)
	segments = append(segments, prefix, category)
	segments = append(segments, parts...)
	for _, segment := range segments[1:] {
		if strings.Contains(segment, ":") {
			panic(fmt.Sprintf("key segment %q contains a colon", segment))
		}
	}
	return strings.Join(segments, ":")
}

// Checkins is the key of the append-only check-in stream.
func Checkins() string {
	return Name("checkins")
}

// User is the key of a user's aggregate hash.
func User(id string) string {
	return Name("users", id)
}

// Location is the key of a location's aggregate hash.
func Location(id string) string {
	return Name("locations", id)
}

// LocationDetail is the key of a location's full detail document.
func LocationDetail(id string) string {
	return Name("locationdetails", id)
}

// ProcessorCursor is the key under which the check-in processor persists the
// id of the last event it fully applied.
func ProcessorCursor() string {
	return Name("checkinprocessor", "lastid")
}

// UserMembership is the key of the serialized user membership filter.
func UserMembership() string {
	return Name("usermembership")
}
