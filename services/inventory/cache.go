package inventory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mitra/models"

	"go.uber.org/zap"
)

// Selection is the (provider code, seats, passengers) tuple the next book call is built from.
type Selection struct {
	ProviderCode string             `json:"provider_code"`
	TravelDate   string             `json:"travel_date"`
	Seats        []string           `json:"seats"`
	Passengers   []models.Passenger `json:"passengers"`
	Generation   uint64             `json:"generation"`
	SelectedAt   time.Time          `json:"selected_at"`
}

// BookRequest builds the payload of the book call.
func (s Selection) BookRequest() models.BookRequest {
	return models.BookRequest{
		ProviderCode: s.ProviderCode,
		TravelDate:   s.TravelDate,
		Seats:        append([]string(nil), s.Seats...),
		Passengers:   append([]models.Passenger(nil), s.Passengers...),
	}
}

// Cache holds the last search result set, the seat map fetched for it and the
// pending selection. Every search starts a new generation; results tagged with an
// older generation are dropped.
type Cache struct {
	mu         sync.RWMutex
	generation uint64
	query      models.SearchRequest
	schedules  []models.Schedule
	seatMap    *models.SeatMap
	selection  *Selection

	store  SelectionStore
	logger *zap.Logger
}

// NewCache creates an empty cache. store may be nil.
func NewCache(store SelectionStore, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger}
}

func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// BeginSearch opens a new generation for req and drops the previous results,
// seat map and selection.
func (c *Cache) BeginSearch(ctx context.Context, req models.SearchRequest) uint64 {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.query = req
	c.schedules = nil
	c.seatMap = nil
	hadSelection := c.selection != nil
	c.selection = nil
	c.mu.Unlock()

	if hadSelection {
		c.clearStore(ctx)
	}
	return gen
}

// StoreResults records the schedules of generation gen. It reports false when a
// newer search has started in the meantime.
func (c *Cache) StoreResults(gen uint64, schedules []models.Schedule) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.Debug("Dropping superseded search results", zap.Uint64("generation", gen), zap.Uint64("current", c.generation))
		return false
	}
	c.schedules = append([]models.Schedule(nil), schedules...)
	return true
}

func (c *Cache) Query() models.SearchRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query
}

func (c *Cache) Schedules() []models.Schedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Schedule(nil), c.schedules...)
}

func (c *Cache) Schedule(providerCode string) (models.Schedule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findSchedule(providerCode)
}

func (c *Cache) findSchedule(providerCode string) (models.Schedule, bool) {
	for _, s := range c.schedules {
		if s.ProviderCode == providerCode {
			return s, true
		}
	}
	return models.Schedule{}, false
}

// StoreSeatMap records a freshly fetched seat map for generation gen.
func (c *Cache) StoreSeatMap(gen uint64, m *models.SeatMap) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || m == nil {
		return false
	}
	cp := *m
	cp.Seats = append([]models.Seat(nil), m.Seats...)
	c.seatMap = &cp
	return true
}

func (c *Cache) SeatMap() *models.SeatMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.seatMap == nil {
		return nil
	}
	cp := *c.seatMap
	cp.Seats = append([]models.Seat(nil), c.seatMap.Seats...)
	return &cp
}

// Select validates and records the selection for the next book call. The
// provider code must come from the current results. When a seat map for that
// provider is loaded, every seat must be present and available in it.
func (c *Cache) Select(ctx context.Context, providerCode string, seats []string, passengers []models.Passenger) (*Selection, error) {
	const op = "select"
	providerCode = strings.TrimSpace(providerCode)
	if providerCode == "" {
		return nil, models.NewError(models.KindInvalidArgument, op, "provider_code is required")
	}
	if err := ValidateSeatsAndPassengers(op, seats, passengers); err != nil {
		return nil, err
	}

	c.mu.Lock()
	schedule, ok := c.findSchedule(providerCode)
	if !ok {
		c.mu.Unlock()
		return nil, models.NewError(models.KindInvalidState, op, fmt.Sprintf("provider_code %s is not in the current search results", providerCode))
	}
	if c.seatMap != nil && c.seatMap.ProviderCode == providerCode {
		for _, seat := range seats {
			if !c.seatMap.SeatAvailable(seat) {
				c.mu.Unlock()
				return nil, models.NewError(models.KindInvalidArgument, op, fmt.Sprintf("seat %s is not available", seat))
			}
		}
	}
	travelDate := schedule.TravelDate
	if travelDate == "" {
		travelDate = c.query.TravelDate
	}
	sel := &Selection{
		ProviderCode: providerCode,
		TravelDate:   travelDate,
		Seats:        append([]string(nil), seats...),
		Passengers:   append([]models.Passenger(nil), passengers...),
		Generation:   c.generation,
		SelectedAt:   time.Now(),
	}
	c.selection = sel
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, *sel); err != nil {
			c.logger.Warn("Failed to persist selection", zap.String("provider_code", providerCode), zap.Error(err))
		}
	}
	out := *sel
	return &out, nil
}

func (c *Cache) Selection() *Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selection == nil {
		return nil
	}
	out := *c.selection
	return &out
}

// ClearSelection drops the pending selection, e.g. once book succeeded.
func (c *Cache) ClearSelection(ctx context.Context) {
	c.mu.Lock()
	c.selection = nil
	c.mu.Unlock()
	c.clearStore(ctx)
}

// Reset drops everything and starts a new generation.
func (c *Cache) Reset(ctx context.Context) {
	c.mu.Lock()
	c.generation++
	c.query = models.SearchRequest{}
	c.schedules = nil
	c.seatMap = nil
	c.selection = nil
	c.mu.Unlock()
	c.clearStore(ctx)
}

// Restore reloads a persisted selection after a restart. The restored selection
// belongs to the current generation since no search has run yet.
func (c *Cache) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	sel, err := c.store.Load(ctx)
	if err != nil || sel == nil {
		return err
	}
	c.mu.Lock()
	sel.Generation = c.generation
	c.selection = sel
	c.mu.Unlock()
	c.logger.Info("Restored pending selection", zap.String("provider_code", sel.ProviderCode), zap.Strings("seats", sel.Seats))
	return nil
}

func (c *Cache) clearStore(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("Failed to clear persisted selection", zap.Error(err))
	}
}

// ValidateSeatsAndPassengers enforces one present passenger per distinct seat.
func ValidateSeatsAndPassengers(op string, seats []string, passengers []models.Passenger) error {
	if len(seats) == 0 {
		return models.NewError(models.KindInvalidArgument, op, "at least one seat is required")
	}
	if len(passengers) != len(seats) {
		return models.NewError(models.KindInvalidArgument, op, fmt.Sprintf("%d seats need %d passengers, got %d", len(seats), len(seats), len(passengers)))
	}
	seen := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		s = strings.TrimSpace(s)
		if s == "" {
			return models.NewError(models.KindInvalidArgument, op, "seat id must not be empty")
		}
		if _, dup := seen[s]; dup {
			return models.NewError(models.KindInvalidArgument, op, fmt.Sprintf("seat %s is selected twice", s))
		}
		seen[s] = struct{}{}
	}
	for i, p := range passengers {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.IdentityNumber) == "" {
			return models.NewError(models.KindInvalidArgument, op, fmt.Sprintf("passenger %d needs a name and an identity number", i+1))
		}
	}
	return nil
}
