package loader

import (
	"encoding/json"
	"fmt"
	"os"
)

// Seed is the on-disk bulk load format: reference entities plus the sample
// check-ins to append to the stream.
type Seed struct {
	Users     []SeedUser     `json:"users"`
	Locations []SeedLocation `json:"locations"`
	Checkins  []SeedCheckin  `json:"checkins"`
}

type SeedUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type SeedLocation struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Lat      string `json:"lat"`
	Lng      string `json:"lng"`

	// Details is the location's full detail document, stored whole.
	Details json.RawMessage `json:"details"`
}

type SeedCheckin struct {
	LocationID string `json:"locationId"`
	UserID     string `json:"userId"`
	StarRating int    `json:"starRating"`
}

// ReadSeed parses a seed file.
func ReadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}
