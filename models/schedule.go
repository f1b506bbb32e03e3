package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// SearchRequest is the inventory query sent to /transactions/search.
type SearchRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	TravelDate  string `json:"travel_date"` // YYYY-MM-DD
}

// Schedule is a bookable offering returned by search. Immutable once returned.
type Schedule struct {
	ProviderCode   string              `json:"provider_code"`
	Origin         string              `json:"origin"`
	Destination    string              `json:"destination"`
	TravelDate     string              `json:"travel_date"`
	AvailableSeats int                 `json:"available_seats"`
	DepartureTime  string              `json:"departure_time,omitempty"`
	ArrivalTime    string              `json:"arrival_time,omitempty"`
	OperatorName   string              `json:"operator_name,omitempty"`
	Price          decimal.NullDecimal `json:"price"`
}

// Seat is one reservable unit of a seat map.
type Seat struct {
	SeatID    string `json:"seat_id"`
	Available bool   `json:"available"`
}

// SeatMap groups the seats of one provider code.
type SeatMap struct {
	ProviderCode string `json:"provider_code"`
	Seats        []Seat `json:"seats"`
}

// SeatAvailable reports whether seatID is present and not occupied.
func (m SeatMap) SeatAvailable(seatID string) bool {
	for _, s := range m.Seats {
		if s.SeatID == seatID {
			return s.Available
		}
	}
	return false
}

// UnmarshalJSON accepts the seat id under any of the keys the backends use and the
// availability either as a boolean or as a status string.
func (s *Seat) UnmarshalJSON(b []byte) error {
	var raw struct {
		SeatID     string `json:"seat_id"`
		SeatNumber string `json:"seat_number"`
		Seat       string `json:"seat"`
		Code       string `json:"code"`
		Available  *bool  `json:"available"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.SeatID = firstNonEmpty(raw.SeatID, raw.SeatNumber, raw.Seat, raw.Code)
	switch {
	case raw.Available != nil:
		s.Available = *raw.Available
	default:
		s.Available = strings.EqualFold(strings.TrimSpace(raw.Status), "available")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
