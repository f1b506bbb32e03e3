package booking

import (
	"context"
	"strings"
	"time"

	"mitra/models"
	"mitra/services/inventory"
)

const travelDateLayout = "2006-01-02"

func NewBookingSessionService(catalog Catalog, cache *inventory.Cache, coordinator *Coordinator) *DefaultBookingSessionService {
	return &DefaultBookingSessionService{Catalog: catalog, Inventory: cache, Coordinator: coordinator}
}

// Search starts a new session: the loaded transaction and any pending
// selection are dropped before the query is sent.
func (s *DefaultBookingSessionService) Search(ctx context.Context, req models.SearchRequest) ([]models.Schedule, error) {
	const op = "search"
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	req.TravelDate = strings.TrimSpace(req.TravelDate)
	if req.Origin == "" || req.Destination == "" || req.TravelDate == "" {
		return nil, s.Coordinator.RecordError(op, models.NewError(models.KindInvalidArgument, op, "origin, destination and travel_date are required"))
	}
	if _, err := time.Parse(travelDateLayout, req.TravelDate); err != nil {
		return nil, s.Coordinator.RecordError(op, models.NewError(models.KindInvalidArgument, op, "travel_date must be formatted as YYYY-MM-DD"))
	}

	s.Coordinator.Reset()
	gen := s.Inventory.BeginSearch(ctx, req)

	schedules, err := s.Catalog.Search(ctx, req)
	if err != nil {
		return nil, s.Coordinator.RecordError(op, err)
	}
	s.Inventory.StoreResults(gen, schedules)
	return schedules, nil
}

// SeatMap fetches a fresh seat map; seat maps are never reused across searches.
func (s *DefaultBookingSessionService) SeatMap(ctx context.Context, providerCode string) (*models.SeatMap, error) {
	gen := s.Inventory.Generation()
	m, err := s.Catalog.SeatMap(ctx, providerCode)
	if err != nil {
		return nil, s.Coordinator.RecordError("seat_map", err)
	}
	s.Inventory.StoreSeatMap(gen, m)
	return m, nil
}

func (s *DefaultBookingSessionService) Select(ctx context.Context, providerCode string, seats []string, passengers []models.Passenger) (*inventory.Selection, error) {
	sel, err := s.Inventory.Select(ctx, providerCode, seats, passengers)
	if err != nil {
		return nil, s.Coordinator.RecordError("select", err)
	}
	return sel, nil
}

// Book issues the book call for the pending selection. The selection is
// consumed once the transaction exists.
func (s *DefaultBookingSessionService) Book(ctx context.Context) (*models.Transaction, error) {
	sel := s.Inventory.Selection()
	if sel == nil {
		return nil, s.Coordinator.RecordError("book", models.NewError(models.KindInvalidState, "book", "select a schedule, seats and passengers first"))
	}
	trx, err := s.Coordinator.Book(ctx, sel.BookRequest())
	if err != nil {
		return nil, err
	}
	if s.Inventory.Generation() == sel.Generation {
		s.Inventory.ClearSelection(ctx)
	}
	return trx, nil
}

func (s *DefaultBookingSessionService) Pay(ctx context.Context, trxCode string) (*models.Transaction, error) {
	return s.Coordinator.Pay(ctx, s.codeOrCurrent(trxCode))
}

func (s *DefaultBookingSessionService) Issue(ctx context.Context, trxCode string) (*models.Transaction, error) {
	return s.Coordinator.Issue(ctx, s.codeOrCurrent(trxCode))
}

func (s *DefaultBookingSessionService) Cancel(ctx context.Context, trxCode, reason string) (*models.Transaction, error) {
	return s.Coordinator.Cancel(ctx, s.codeOrCurrent(trxCode), reason)
}

func (s *DefaultBookingSessionService) Refresh(ctx context.Context, trxCode string) (*models.Transaction, error) {
	return s.Coordinator.Refresh(ctx, s.codeOrCurrent(trxCode))
}

func (s *DefaultBookingSessionService) Current() SessionView {
	return SessionView{
		State:       s.Coordinator.State(),
		Transaction: s.Coordinator.Snapshot(),
		Query:       s.Inventory.Query(),
		Schedules:   s.Inventory.Schedules(),
		SeatMap:     s.Inventory.SeatMap(),
		Selection:   s.Inventory.Selection(),
	}
}

func (s *DefaultBookingSessionService) Errors(drain bool) []*models.Error {
	if drain {
		return s.Coordinator.DrainErrors()
	}
	return s.Coordinator.Errors()
}

// Reset clears the client-side session. Nothing is cancelled server-side.
func (s *DefaultBookingSessionService) Reset(ctx context.Context) {
	s.Coordinator.Reset()
	s.Inventory.Reset(ctx)
}

// codeOrCurrent lets callers omit the trx_code of the loaded transaction.
func (s *DefaultBookingSessionService) codeOrCurrent(trxCode string) string {
	if trxCode = strings.TrimSpace(trxCode); trxCode != "" {
		return trxCode
	}
	return s.Coordinator.State().TrxCode
}
