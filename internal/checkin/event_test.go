package checkin

import (
	"errors"
	"testing"

	"github.com/venuepulse/venuepulse/internal/stream"
)

func TestDecode(t *testing.T) {
	id := stream.EntryID{Ms: 1724000000123, Seq: 2}
	event, err := Decode(id, map[string]string{
		"locationId": "l17",
		"userId":     "u42",
		"starRating": "4",
	})
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if event.LocationID != "l17" || event.UserID != "u42" || event.StarRating != 4 {
		t.Fatalf("Decode = %+v", event)
	}
	if event.Timestamp.UnixMilli() != 1724000000123 {
		t.Errorf("Timestamp = %v, want the id's millisecond part", event.Timestamp)
	}
}

func TestDecodeMissingField(t *testing.T) {
	id := stream.EntryID{Ms: 1, Seq: 0}
	fields := map[string]string{
		"locationId": "l17",
		"userId":     "u42",
		"starRating": "4",
	}
	for _, missing := range []string{"locationId", "userId", "starRating"} {
		partial := make(map[string]string)
		for k, v := range fields {
			if k != missing {
				partial[k] = v
			}
		}
		_, err := Decode(id, partial)
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("Decode without %s returned %v, want ErrMissingField", missing, err)
		}
	}
}

func TestDecodeNonNumericRating(t *testing.T) {
	_, err := Decode(stream.EntryID{Ms: 1}, map[string]string{
		"locationId": "l17",
		"userId":     "u42",
		"starRating": "five",
	})
	if err == nil {
		t.Fatal("Decode accepted a non-numeric starRating")
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	event := Event{LocationID: "l1", UserID: "u1", StarRating: 5}
	decoded, err := Decode(stream.EntryID{Ms: 9}, event.Fields())
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.LocationID != "l1" || decoded.UserID != "u1" || decoded.StarRating != 5 {
		t.Fatalf("round trip = %+v", decoded)
	}
}
