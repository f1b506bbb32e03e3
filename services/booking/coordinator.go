package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mitra/models"
	"mitra/services/inventory"

	"go.uber.org/zap"
)

const maxRecordedErrors = 50

// Gateway is the subset of the partner API the coordinator drives.
type Gateway interface {
	Book(ctx context.Context, req models.BookRequest) (*models.Transaction, error)
	Pay(ctx context.Context, trxCode string) (*models.Transaction, error)
	Issue(ctx context.Context, trxCode string) (*models.Transaction, error)
	Cancel(ctx context.Context, trxCode, reason string) (*models.Transaction, error)
	Detail(ctx context.Context, trxCode string) (*models.Transaction, error)
}

// Journal records every transaction snapshot the coordinator applies.
type Journal interface {
	Record(ctx context.Context, op string, trx *models.Transaction) error
}

// ReconcileScheduler queues a background detail refresh for an uncertain transaction.
type ReconcileScheduler interface {
	ScheduleReconcile(ctx context.Context, trxCode string) error
}

// State is the lifecycle view exposed to callers.
type State struct {
	TrxCode     string                   `json:"trx_code,omitempty"`
	Status      models.TransactionStatus `json:"status,omitempty"`
	Terminal    bool                     `json:"terminal"`
	Uncertain   bool                     `json:"uncertain"`
	UncertainOp string                   `json:"uncertain_op,omitempty"`
	Busy        bool                     `json:"busy"`
	InFlight    string                   `json:"in_flight,omitempty"`
	Epoch       uint64                   `json:"epoch"`
}

type Option func(*Coordinator)

func WithJournal(j Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

func WithReconcileScheduler(s ReconcileScheduler) Option {
	return func(c *Coordinator) { c.reconciler = s }
}

// Coordinator owns the client-side copy of the transaction in progress and
// sequences book, pay, issue, cancel and detail under the lifecycle rules.
//
// The lock is never held across a network call. A mutating call marks itself
// in flight, runs unlocked on a context detached from the caller's
// cancellation, and its result is applied only if the session epoch is
// unchanged when it returns.
type Coordinator struct {
	gateway    Gateway
	journal    Journal
	reconciler ReconcileScheduler
	logger     *zap.Logger

	mu          sync.Mutex
	trx         *models.Transaction
	epoch       uint64
	inFlight    string
	uncertain   bool
	uncertainOp string
	errs        []*models.Error

	// uncertainSeq counts entries into Uncertain. A detail reply clears the
	// marker only if no new entry happened after its request was sent.
	uncertainSeq uint64
}

func NewCoordinator(gateway Gateway, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{gateway: gateway, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the cached transaction, or nil when none is loaded.
func (c *Coordinator) Snapshot() *models.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trx.Clone()
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Uncertain:   c.uncertain,
		UncertainOp: c.uncertainOp,
		Busy:        c.inFlight != "",
		InFlight:    c.inFlight,
		Epoch:       c.epoch,
	}
	if c.trx != nil {
		s.TrxCode = c.trx.TrxCode
		s.Status = c.trx.Status
		s.Terminal = c.trx.Status.Terminal()
	}
	return s
}

// Errors returns the user-facing errors recorded so far, oldest first.
func (c *Coordinator) Errors() []*models.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.Error(nil), c.errs...)
}

// DrainErrors returns the recorded errors and forgets them.
func (c *Coordinator) DrainErrors() []*models.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.errs
	c.errs = nil
	return out
}

// RecordError appends err to the user-facing sequence and returns it as a *models.Error.
func (c *Coordinator) RecordError(op string, err error) *models.Error {
	e := asModelError(op, err)
	c.mu.Lock()
	c.appendErrorLocked(e)
	c.mu.Unlock()
	return e
}

func (c *Coordinator) appendErrorLocked(e *models.Error) {
	c.errs = append(c.errs, e)
	if n := len(c.errs); n > maxRecordedErrors {
		c.errs = append([]*models.Error(nil), c.errs[n-maxRecordedErrors:]...)
	}
}

// Reset forgets the transaction and starts a new epoch. Results of calls still
// in flight are discarded when they arrive. The server-side transaction is untouched.
func (c *Coordinator) Reset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	if c.trx != nil || c.inFlight != "" {
		c.logger.Info("Transaction session reset",
			zap.String("trx_code", codeOf(c.trx)),
			zap.String("in_flight", c.inFlight),
			zap.Uint64("epoch", c.epoch))
	}
	c.trx = nil
	c.inFlight = ""
	c.uncertain = false
	c.uncertainOp = ""
	return c.epoch
}

// Book creates the remote transaction. It is legal only while no transaction is
// loaded; a loaded one must be discarded with Reset first.
func (c *Coordinator) Book(ctx context.Context, req models.BookRequest) (*models.Transaction, error) {
	const op = "book"
	if err := validateBookRequest(req); err != nil {
		return nil, c.fail(err)
	}

	c.mu.Lock()
	if gerr := c.guardLocked(op); gerr != nil {
		c.mu.Unlock()
		return nil, c.fail(gerr)
	}
	if c.trx != nil {
		code, status := c.trx.TrxCode, c.trx.Status
		c.mu.Unlock()
		return nil, c.fail(models.NewError(models.KindInvalidState, op, fmt.Sprintf("transaction %s is already loaded (%s); reset before booking again", code, status)))
	}
	epoch := c.epoch
	c.inFlight = op
	c.mu.Unlock()

	c.logger.Info("Booking transaction",
		zap.String("provider_code", req.ProviderCode),
		zap.Strings("seats", req.Seats),
		zap.Uint64("epoch", epoch))

	trx, err := c.gateway.Book(context.WithoutCancel(ctx), req)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		if err == nil {
			c.logger.Warn("Discarding booking of a superseded session",
				zap.String("trx_code", trx.TrxCode),
				zap.Uint64("epoch", epoch))
			return trx, nil
		}
		return nil, c.fail(asModelError(op, err))
	}
	c.inFlight = ""
	if err != nil {
		e := asModelError(op, err)
		if unknownOutcome(e) {
			c.markUncertainLocked(op)
		}
		c.appendErrorLocked(e)
		c.mu.Unlock()
		c.logFailure(op, "", e)
		return nil, e
	}
	if trx.Status != models.StatusPending {
		c.logger.Warn("Booked transaction is not pending", zap.String("trx_code", trx.TrxCode), zap.String("status", string(trx.Status)))
	}
	c.trx = trx.Clone()
	out := c.trx.Clone()
	c.mu.Unlock()

	c.logger.Info("Transaction booked", zap.String("trx_code", out.TrxCode), zap.String("status", string(out.Status)))
	c.journalRecord(ctx, op, out)
	return out, nil
}

// Pay debits the prepaid balance. Legal only from pending.
func (c *Coordinator) Pay(ctx context.Context, trxCode string) (*models.Transaction, error) {
	return c.mutate(ctx, trxCode, mutation{
		op:      "pay",
		allowed: (*models.Transaction).IsPending,
		reached: func(t *models.Transaction) bool { return t.IsPaid() || t.IsIssued() },
		call:    c.gateway.Pay,
	})
}

// Issue finalizes a paid transaction; the server credits the fee. Legal only from paid.
func (c *Coordinator) Issue(ctx context.Context, trxCode string) (*models.Transaction, error) {
	return c.mutate(ctx, trxCode, mutation{
		op:      "issue",
		allowed: (*models.Transaction).IsPaid,
		reached: (*models.Transaction).IsIssued,
		call:    c.gateway.Issue,
	})
}

// Cancel is legal from pending or paid. The server refunds what was debited.
func (c *Coordinator) Cancel(ctx context.Context, trxCode, reason string) (*models.Transaction, error) {
	return c.mutate(ctx, trxCode, mutation{
		op:      "cancel",
		allowed: func(t *models.Transaction) bool { return t.IsPending() || t.IsPaid() },
		reached: (*models.Transaction).IsCancelled,
		call: func(ctx context.Context, code string) (*models.Transaction, error) {
			return c.gateway.Cancel(ctx, code, reason)
		},
	})
}

// Refresh re-fetches the transaction from the server. A successful refresh
// clears the uncertain marker. It may run while a mutation is in flight.
func (c *Coordinator) Refresh(ctx context.Context, trxCode string) (*models.Transaction, error) {
	const op = "detail"
	c.mu.Lock()
	if err := c.requireLoadedLocked(op, trxCode); err != nil {
		c.mu.Unlock()
		return nil, c.fail(err)
	}
	code, epoch, seq := c.trx.TrxCode, c.epoch, c.uncertainSeq
	c.mu.Unlock()

	return c.refresh(ctx, op, code, epoch, seq)
}

// ReconcileIfCurrent refreshes trxCode only while it is still the loaded,
// non-terminal transaction. It reports whether a refresh was attempted.
func (c *Coordinator) ReconcileIfCurrent(ctx context.Context, trxCode string) (bool, error) {
	c.mu.Lock()
	if c.trx == nil || c.trx.TrxCode != trxCode || c.trx.Status.Terminal() {
		c.mu.Unlock()
		return false, nil
	}
	epoch, seq := c.epoch, c.uncertainSeq
	c.mu.Unlock()

	_, err := c.refresh(ctx, "reconcile", trxCode, epoch, seq)
	return true, err
}

func (c *Coordinator) refresh(ctx context.Context, op, code string, epoch, seq uint64) (*models.Transaction, error) {
	trx, err := c.gateway.Detail(context.WithoutCancel(ctx), code)
	if err != nil {
		e := c.fail(asModelError(op, err))
		c.logFailure(op, code, e)
		return nil, e
	}
	out, applied, aerr := c.apply(op, code, epoch, seq, trx)
	if aerr != nil {
		return nil, c.fail(aerr)
	}
	if applied {
		c.journalRecord(ctx, op, out)
	}
	return out, nil
}

type mutation struct {
	op      string
	allowed func(*models.Transaction) bool
	reached func(*models.Transaction) bool
	call    func(ctx context.Context, trxCode string) (*models.Transaction, error)
}

func (c *Coordinator) mutate(ctx context.Context, trxCode string, m mutation) (*models.Transaction, error) {
	c.mu.Lock()
	if err := c.requireLoadedLocked(m.op, trxCode); err != nil {
		c.mu.Unlock()
		return nil, c.fail(err)
	}
	if gerr := c.guardLocked(m.op); gerr != nil {
		c.mu.Unlock()
		return nil, c.fail(gerr)
	}
	if !m.allowed(c.trx) {
		status := c.trx.Status
		c.mu.Unlock()
		return nil, c.fail(models.NewError(models.KindInvalidState, m.op, fmt.Sprintf("cannot %s a %s transaction", m.op, status)))
	}
	code, epoch, seq := c.trx.TrxCode, c.epoch, c.uncertainSeq
	c.inFlight = m.op
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	c.logger.Info("Dispatching transaction mutation", zap.String("op", m.op), zap.String("trx_code", code), zap.Uint64("epoch", epoch))

	trx, err := m.call(detached, code)
	if err == nil {
		out, applied, aerr := c.apply(m.op, code, epoch, seq, trx)
		c.finish(epoch)
		if aerr != nil {
			// A 2xx answer we cannot trust leaves the outcome unknown.
			c.markUncertain(m.op, code, epoch)
			return nil, c.fail(aerr)
		}
		if applied {
			c.journalRecord(ctx, m.op, out)
		}
		return out, nil
	}

	e := asModelError(m.op, err)
	switch {
	case e.Kind == models.KindConflict:
		c.logger.Info("Server reported a conflict, reconciling", zap.String("op", m.op), zap.String("trx_code", code), zap.String("message", e.Message))
		out, rerr := c.reconcile(detached, m, code, epoch, seq, e)
		c.finish(epoch)
		return out, rerr
	case unknownOutcome(e):
		c.finish(epoch)
		c.markUncertain(m.op, code, epoch)
	default:
		c.finish(epoch)
	}
	c.logFailure(m.op, code, e)
	return nil, c.fail(e)
}

// reconcile runs the single detail fetch that follows a Conflict. No error is
// surfaced when the authoritative status already satisfies the intent.
func (c *Coordinator) reconcile(ctx context.Context, m mutation, code string, epoch, seq uint64, conflict *models.Error) (*models.Transaction, error) {
	trx, err := c.gateway.Detail(ctx, code)
	if err != nil {
		e := asModelError(m.op, err)
		c.markUncertain(m.op, code, epoch)
		c.logFailure(m.op, code, e)
		return nil, c.fail(e)
	}
	out, applied, aerr := c.apply(m.op, code, epoch, seq, trx)
	if aerr != nil {
		c.markUncertain(m.op, code, epoch)
		return nil, c.fail(aerr)
	}
	if applied {
		c.journalRecord(ctx, m.op+":reconcile", out)
	}
	if m.reached(trx) {
		c.logger.Info("Conflict reconciled", zap.String("op", m.op), zap.String("trx_code", code), zap.String("status", string(trx.Status)))
		return out, nil
	}
	e := &models.Error{
		Kind:    models.KindConflict,
		Op:      m.op,
		Message: fmt.Sprintf("transaction %s is %s on the server", code, trx.Status),
		Status:  conflict.Status,
		Err:     conflict,
	}
	return out, c.fail(e)
}

// apply merges a decoded server snapshot into the cache. It reports applied=false
// when the session moved on while the call was outstanding. seq is the
// uncertainSeq observed when the call was sent; a reply to a request that
// predates the latest unknown outcome leaves the coordinator Uncertain.
func (c *Coordinator) apply(op, code string, epoch, seq uint64, trx *models.Transaction) (*models.Transaction, bool, *models.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.trx == nil || c.trx.TrxCode != code {
		c.logger.Warn("Discarding result of a superseded session",
			zap.String("op", op),
			zap.String("trx_code", code),
			zap.Uint64("epoch", epoch),
			zap.Uint64("current_epoch", c.epoch))
		return trx.Clone(), false, nil
	}
	if trx.TrxCode != code {
		return nil, false, models.NewError(models.KindProtocol, op, fmt.Sprintf("server answered for %s while %s was requested", trx.TrxCode, code))
	}
	if !c.trx.Status.CanAdvanceTo(trx.Status) {
		return nil, false, models.NewError(models.KindProtocol, op, fmt.Sprintf("server moved %s backward from %s to %s", code, c.trx.Status, trx.Status))
	}

	from := c.trx.Status
	c.trx.Merge(trx)
	if c.uncertainSeq == seq {
		c.uncertain = false
		c.uncertainOp = ""
	} else if c.uncertain {
		c.logger.Info("Keeping uncertain marker, reply predates the unknown outcome",
			zap.String("op", op),
			zap.String("trx_code", code),
			zap.String("uncertain_op", c.uncertainOp))
	}
	if from != c.trx.Status {
		c.logger.Info("Transaction status changed",
			zap.String("op", op),
			zap.String("trx_code", code),
			zap.String("from", string(from)),
			zap.String("status", string(c.trx.Status)))
	}
	return c.trx.Clone(), true, nil
}

// finish clears the in-flight marker unless a reset already did.
func (c *Coordinator) finish(epoch uint64) {
	c.mu.Lock()
	if c.epoch == epoch {
		c.inFlight = ""
	}
	c.mu.Unlock()
}

func (c *Coordinator) markUncertain(op, code string, epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.markUncertainLocked(op)
	c.mu.Unlock()

	c.logger.Warn("Transaction outcome unknown, refresh required", zap.String("op", op), zap.String("trx_code", code))
	if c.reconciler != nil && code != "" {
		if err := c.reconciler.ScheduleReconcile(context.Background(), code); err != nil {
			c.logger.Error("Failed to schedule reconciliation", zap.String("trx_code", code), zap.Error(err))
		}
	}
}

func (c *Coordinator) markUncertainLocked(op string) {
	c.uncertainSeq++
	c.uncertain = true
	c.uncertainOp = op
}

// requireLoadedLocked fails closed unless trxCode names the loaded, non-terminal transaction.
func (c *Coordinator) requireLoadedLocked(op, trxCode string) *models.Error {
	if trxCode == "" {
		return models.NewError(models.KindInvalidArgument, op, "trx_code is required")
	}
	if c.trx == nil {
		return models.NewError(models.KindInvalidState, op, "no transaction is loaded")
	}
	if c.trx.TrxCode != trxCode {
		return models.NewError(models.KindInvalidState, op, fmt.Sprintf("transaction %s is not the loaded transaction", trxCode))
	}
	if c.trx.Status.Terminal() {
		return models.NewError(models.KindInvalidState, op, fmt.Sprintf("transaction %s is %s", c.trx.TrxCode, c.trx.Status))
	}
	return nil
}

// guardLocked enforces a single outstanding mutation and the refresh-before-retry rule.
func (c *Coordinator) guardLocked(op string) *models.Error {
	if c.inFlight != "" {
		return busyError(op, c.inFlight)
	}
	if c.uncertain {
		return uncertainError(op, c.uncertainOp)
	}
	return nil
}

func (c *Coordinator) fail(e *models.Error) *models.Error {
	c.mu.Lock()
	c.appendErrorLocked(e)
	c.mu.Unlock()
	return e
}

func (c *Coordinator) journalRecord(ctx context.Context, op string, trx *models.Transaction) {
	if c.journal == nil || trx == nil {
		return
	}
	if err := c.journal.Record(context.WithoutCancel(ctx), op, trx); err != nil {
		c.logger.Error("Failed to journal transaction", zap.String("op", op), zap.String("trx_code", trx.TrxCode), zap.Error(err))
	}
}

func (c *Coordinator) logFailure(op, code string, e *models.Error) {
	c.logger.Warn("Transaction operation failed",
		zap.String("op", op),
		zap.String("trx_code", code),
		zap.String("kind", string(e.Kind)),
		zap.String("message", e.Message))
}

func validateBookRequest(req models.BookRequest) *models.Error {
	const op = "book"
	if req.ProviderCode == "" {
		return models.NewError(models.KindInvalidArgument, op, "provider_code is required")
	}
	if req.TravelDate == "" {
		return models.NewError(models.KindInvalidArgument, op, "travel_date is required")
	}
	if err := inventory.ValidateSeatsAndPassengers(op, req.Seats, req.Passengers); err != nil {
		return asModelError(op, err)
	}
	return nil
}

// unknownOutcome reports failures after which the server may or may not have
// applied the mutation.
func unknownOutcome(e *models.Error) bool {
	return e.Kind == models.KindTransientFailure || e.Kind == models.KindProtocol
}

func asModelError(op string, err error) *models.Error {
	var e *models.Error
	if errors.As(err, &e) {
		return e
	}
	return models.WrapError(models.KindTransientFailure, op, err)
}

func codeOf(trx *models.Transaction) string {
	if trx == nil {
		return ""
	}
	return trx.TrxCode
}
