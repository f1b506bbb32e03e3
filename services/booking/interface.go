package booking

import (
	"context"

	"mitra/models"
	"mitra/services/inventory"
)

// BookingSessionService defines the interface for the single booking session a
// mitra drives: search, seat selection and the transaction lifecycle.
type BookingSessionService interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.Schedule, error)
	SeatMap(ctx context.Context, providerCode string) (*models.SeatMap, error)
	Select(ctx context.Context, providerCode string, seats []string, passengers []models.Passenger) (*inventory.Selection, error)
	Book(ctx context.Context) (*models.Transaction, error)
	Pay(ctx context.Context, trxCode string) (*models.Transaction, error)
	Issue(ctx context.Context, trxCode string) (*models.Transaction, error)
	Cancel(ctx context.Context, trxCode, reason string) (*models.Transaction, error)
	Refresh(ctx context.Context, trxCode string) (*models.Transaction, error)
	Current() SessionView
	Errors(drain bool) []*models.Error
	Reset(ctx context.Context)
}

// Catalog is the read-only part of the partner API used before a transaction exists.
type Catalog interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.Schedule, error)
	SeatMap(ctx context.Context, providerCode string) (*models.SeatMap, error)
}

// SessionView is what the caller sees of the session at a point in time.
type SessionView struct {
	State       State                `json:"state"`
	Transaction *models.Transaction  `json:"transaction,omitempty"`
	Query       models.SearchRequest `json:"query"`
	Schedules   []models.Schedule    `json:"schedules"`
	SeatMap     *models.SeatMap      `json:"seat_map,omitempty"`
	Selection   *inventory.Selection `json:"selection,omitempty"`
}

// DefaultBookingSessionService implements BookingSessionService.
type DefaultBookingSessionService struct {
	Catalog     Catalog
	Inventory   *inventory.Cache
	Coordinator *Coordinator
}
