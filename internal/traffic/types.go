// Package traffic maintains a cached snapshot of the live network feed.
package traffic

import (
	"strconv"
	"time"
)

// Pilot is one connected pilot from the feed.
type Pilot struct {
	UserID      int64   `json:"userId"`
	Callsign    string  `json:"callsign"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    int     `json:"altitude"`
	GroundSpeed int     `json:"groundSpeed"`
	Heading     int     `json:"heading"`
	OnGround    bool    `json:"onGround"`
	Transponder string  `json:"transponder"`
	Departure   string  `json:"departureId"`
	Arrival     string  `json:"arrivalId"`
	Aircraft    string  `json:"aircraftId"`
}

// ATC is one connected controller from the feed.
type ATC struct {
	UserID   int64  `json:"userId"`
	Callsign string `json:"callsign"`
	Position string `json:"position"`
	Atis     string `json:"atis"`
}

// NetworkStats summarizes who is online.
type NetworkStats struct {
	Pilots int `json:"pilots"`
	ATCs   int `json:"atcs"`
}

// Snapshot is one parsed fetch of the feed.
type Snapshot struct {
	Pilots    []Pilot      `json:"pilots"`
	ATCs      []ATC        `json:"atcs"`
	Stats     NetworkStats `json:"stats"`
	FetchedAt time.Time    `json:"fetchedAt"`
}

// FlightOf returns the pilot entry for the given member identifier, or nil
// when that member is not flying.
func (s *Snapshot) FlightOf(userID string) *Pilot {
	if s == nil || userID == "" {
		return nil
	}
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil
	}
	for i := range s.Pilots {
		if s.Pilots[i].UserID == id {
			return &s.Pilots[i]
		}
	}
	return nil
}
