package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mitra/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	trx *models.Transaction
	err error
}

// fakeGateway answers each operation from a queue of scripted results and
// counts every dispatched call. A non-nil gate blocks calls until it is closed
// or receives a value; gates holds per-operation gates that take precedence.
type fakeGateway struct {
	mu      sync.Mutex
	script  map[string][]result
	calls   map[string]int
	gate    chan struct{}
	gates   map[string]chan struct{}
	started chan string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{script: map[string][]result{}, calls: map[string]int{}}
}

func (f *fakeGateway) on(op string, trx *models.Transaction, err error) *fakeGateway {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script[op] = append(f.script[op], result{trx: trx, err: err})
	return f
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) next(ctx context.Context, op string) (*models.Transaction, error) {
	f.mu.Lock()
	f.calls[op]++
	gate, started := f.gate, f.started
	if g, ok := f.gates[op]; ok {
		gate = g
	}
	f.mu.Unlock()

	if started != nil {
		started <- op
	}
	if gate != nil {
		<-gate
	}
	if ctx.Err() != nil {
		return nil, errors.New("fake gateway received a cancelled context")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.script[op]
	if len(queue) == 0 {
		return nil, errors.New("unexpected call: " + op)
	}
	f.script[op] = queue[1:]
	if queue[0].err != nil {
		return nil, queue[0].err
	}
	return queue[0].trx.Clone(), nil
}

func (f *fakeGateway) Book(ctx context.Context, _ models.BookRequest) (*models.Transaction, error) {
	return f.next(ctx, "book")
}
func (f *fakeGateway) Pay(ctx context.Context, _ string) (*models.Transaction, error) {
	return f.next(ctx, "pay")
}
func (f *fakeGateway) Issue(ctx context.Context, _ string) (*models.Transaction, error) {
	return f.next(ctx, "issue")
}
func (f *fakeGateway) Cancel(ctx context.Context, _, _ string) (*models.Transaction, error) {
	return f.next(ctx, "cancel")
}
func (f *fakeGateway) Detail(ctx context.Context, _ string) (*models.Transaction, error) {
	return f.next(ctx, "detail")
}

type recordingJournal struct {
	mu  sync.Mutex
	ops []string
}

func (j *recordingJournal) Record(_ context.Context, op string, trx *models.Transaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, op+":"+string(trx.Status))
	return nil
}

type recordingScheduler struct {
	mu    sync.Mutex
	codes []string
}

func (s *recordingScheduler) ScheduleReconcile(_ context.Context, trxCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, trxCode)
	return nil
}

func money(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func trx(status models.TransactionStatus) *models.Transaction {
	return &models.Transaction{TrxCode: "TX1", Status: status}
}

var (
	bookOneSeat = models.BookRequest{
		ProviderCode: "P1",
		TravelDate:   "2024-01-01",
		Seats:        []string{"1A"},
		Passengers:   []models.Passenger{{Name: "X", IdentityNumber: "123"}},
	}
	errTimeout  = &models.Error{Kind: models.KindTransientFailure, Op: "POST /transactions/pay", Message: "context deadline exceeded"}
	errConflict = &models.Error{Kind: models.KindConflict, Message: "Transaction is not pending", Status: 409}
)

// booked returns a coordinator holding TX1 in the given status.
func booked(t *testing.T, gw *fakeGateway, status models.TransactionStatus, opts ...Option) *Coordinator {
	t.Helper()
	gw.on("book", trx(models.StatusPending), nil)
	c := NewCoordinator(gw, nil, opts...)
	_, err := c.Book(context.Background(), bookOneSeat)
	require.NoError(t, err)
	switch status {
	case models.StatusPaid:
		gw.on("pay", trx(models.StatusPaid), nil)
		_, err = c.Pay(context.Background(), "TX1")
	case models.StatusIssued:
		gw.on("pay", trx(models.StatusPaid), nil).on("issue", trx(models.StatusIssued), nil)
		_, err = c.Pay(context.Background(), "TX1")
		require.NoError(t, err)
		_, err = c.Issue(context.Background(), "TX1")
	case models.StatusCancelled:
		gw.on("cancel", trx(models.StatusCancelled), nil)
		_, err = c.Cancel(context.Background(), "TX1", "")
	}
	require.NoError(t, err)
	require.Equal(t, status, c.State().Status)
	return c
}

func TestBookCreatesPendingTransaction(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)

	snap := c.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "TX1", snap.TrxCode)
	assert.Equal(t, models.StatusPending, snap.Status)
	assert.Equal(t, State{TrxCode: "TX1", Status: models.StatusPending}, c.State())
}

func TestBookRejectsMismatchedPassengersBeforeNetwork(t *testing.T) {
	gw := newFakeGateway()
	c := NewCoordinator(gw, nil)

	req := bookOneSeat
	req.Seats = []string{"1A", "1B"}
	_, err := c.Book(context.Background(), req)

	assert.True(t, models.IsInvalidArgument(err))
	assert.Zero(t, gw.count("book"))
	require.Len(t, c.Errors(), 1)
	assert.Equal(t, models.KindInvalidArgument, c.Errors()[0].Kind)
}

func TestBookTwiceRequiresReset(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)

	_, err := c.Book(context.Background(), bookOneSeat)
	assert.True(t, models.IsInvalidState(err))
	assert.Equal(t, 1, gw.count("book"))

	c.Reset()
	gw.on("book", &models.Transaction{TrxCode: "TX2", Status: models.StatusPending}, nil)
	out, err := c.Book(context.Background(), bookOneSeat)
	require.NoError(t, err)
	assert.Equal(t, "TX2", out.TrxCode)
}

func TestOperationsGuardedByCachedStatus(t *testing.T) {
	tests := []struct {
		status models.TransactionStatus
		pay    bool
		issue  bool
		cancel bool
	}{
		{models.StatusPending, true, false, true},
		{models.StatusPaid, false, true, true},
		{models.StatusIssued, false, false, false},
		{models.StatusCancelled, false, false, false},
	}
	ops := map[string]func(*Coordinator) error{
		"pay":    func(c *Coordinator) error { _, err := c.Pay(context.Background(), "TX1"); return err },
		"issue":  func(c *Coordinator) error { _, err := c.Issue(context.Background(), "TX1"); return err },
		"cancel": func(c *Coordinator) error { _, err := c.Cancel(context.Background(), "TX1", ""); return err },
	}

	for _, tt := range tests {
		allowed := map[string]bool{"pay": tt.pay, "issue": tt.issue, "cancel": tt.cancel}
		for op, run := range ops {
			t.Run(string(tt.status)+"/"+op, func(t *testing.T) {
				gw := newFakeGateway()
				c := booked(t, gw, tt.status)
				before := gw.count(op)

				if allowed[op] {
					next := map[string]models.TransactionStatus{"pay": models.StatusPaid, "issue": models.StatusIssued, "cancel": models.StatusCancelled}[op]
					gw.on(op, trx(next), nil)
					require.NoError(t, run(c))
					assert.Equal(t, before+1, gw.count(op))
					return
				}
				err := run(c)
				assert.True(t, models.IsInvalidState(err), "%s from %s", op, tt.status)
				assert.Equal(t, before, gw.count(op), "no network call for an illegal transition")
			})
		}
	}
}

func TestTerminalRejectsEverything(t *testing.T) {
	for _, status := range []models.TransactionStatus{models.StatusIssued, models.StatusCancelled} {
		gw := newFakeGateway()
		c := booked(t, gw, status)
		detailsBefore := gw.count("detail")

		_, err := c.Refresh(context.Background(), "TX1")
		assert.True(t, models.IsInvalidState(err))
		_, err = c.Cancel(context.Background(), "TX1", "late")
		assert.True(t, models.IsInvalidState(err))
		assert.Equal(t, detailsBefore, gw.count("detail"))
		assert.True(t, c.State().Terminal)
	}
}

func TestOperationsWithoutTransactionFailClosed(t *testing.T) {
	gw := newFakeGateway()
	c := NewCoordinator(gw, nil)

	_, err := c.Pay(context.Background(), "TX1")
	assert.True(t, models.IsInvalidState(err))
	_, err = c.Refresh(context.Background(), "TX1")
	assert.True(t, models.IsInvalidState(err))

	c = booked(t, gw, models.StatusPending)
	_, err = c.Pay(context.Background(), "")
	assert.True(t, models.IsInvalidArgument(err))
	_, err = c.Pay(context.Background(), "TX9")
	assert.True(t, models.IsInvalidState(err))
	assert.Zero(t, gw.count("pay"))
}

func TestPayRoundTripKeepsServerFields(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("pay", &models.Transaction{
		TrxCode:       "TX1",
		Status:        models.StatusPaid,
		BalanceBefore: money(100000),
		BalanceAfter:  money(85000),
	}, nil)

	_, err := c.Pay(context.Background(), "TX1")
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Equal(t, "TX1", snap.TrxCode)
	assert.Equal(t, models.StatusPaid, snap.Status)
	assert.Equal(t, "100000", snap.BalanceBefore.Decimal.String())
	assert.Equal(t, "85000", snap.BalanceAfter.Decimal.String())
	assert.False(t, snap.FeeEarned.Valid)
	assert.False(t, snap.RefundAmount.Valid)
}

func TestIssueStoresFeeAndBalance(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPaid)
	gw.on("issue", &models.Transaction{TrxCode: "TX1", Status: models.StatusIssued, FeeEarned: money(2500), BalanceAfter: money(87500)}, nil)

	out, err := c.Issue(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, "2500", out.FeeEarned.Decimal.String())
	assert.Equal(t, "87500", out.BalanceAfter.Decimal.String())
}

func TestTimeoutOnPayEntersUncertain(t *testing.T) {
	gw := newFakeGateway()
	sched := &recordingScheduler{}
	c := booked(t, gw, models.StatusPending, WithReconcileScheduler(sched))
	gw.on("pay", nil, errTimeout)

	_, err := c.Pay(context.Background(), "TX1")
	assert.True(t, models.IsTransient(err))

	state := c.State()
	assert.True(t, state.Uncertain)
	assert.Equal(t, "pay", state.UncertainOp)
	assert.Equal(t, models.StatusPending, state.Status, "no speculative transition")
	assert.Equal(t, []string{"TX1"}, sched.codes)

	// A retry before reconciliation is not dispatched.
	_, err = c.Pay(context.Background(), "TX1")
	assert.True(t, models.IsUncertain(err))
	_, err = c.Cancel(context.Background(), "TX1", "")
	assert.True(t, models.IsUncertain(err))
	assert.Equal(t, 1, gw.count("pay"))
	assert.Zero(t, gw.count("cancel"))

	// The explicit refresh reveals the debit did happen.
	gw.on("detail", &models.Transaction{TrxCode: "TX1", Status: models.StatusPaid, BalanceBefore: money(100000), BalanceAfter: money(85000)}, nil)
	out, err := c.Refresh(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, out.Status)
	assert.False(t, c.State().Uncertain)

	// Pay is now illegal, issue is allowed.
	_, err = c.Pay(context.Background(), "TX1")
	assert.True(t, models.IsInvalidState(err))
	gw.on("issue", trx(models.StatusIssued), nil)
	_, err = c.Issue(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.count("pay"))
}

func TestFailedRefreshKeepsUncertain(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("pay", nil, errTimeout).on("detail", nil, errTimeout)

	_, _ = c.Pay(context.Background(), "TX1")
	_, err := c.Refresh(context.Background(), "TX1")
	assert.True(t, models.IsTransient(err))
	assert.True(t, c.State().Uncertain)
}

func TestUndecodableSuccessEntersUncertain(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("pay", nil, models.NewError(models.KindProtocol, "pay", "response carries no payload under data or message"))

	_, err := c.Pay(context.Background(), "TX1")
	assert.True(t, models.IsProtocol(err))
	assert.True(t, c.State().Uncertain)
}

func TestDefinitiveRejectionLeavesStateUnchanged(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("pay", nil, &models.Error{Kind: models.KindRejected, Message: "Insufficient balance", Status: 422})

	_, err := c.Pay(context.Background(), "TX1")
	assert.True(t, models.IsRejected(err))
	state := c.State()
	assert.False(t, state.Uncertain)
	assert.Equal(t, models.StatusPending, state.Status)

	gw.on("pay", trx(models.StatusPaid), nil)
	_, err = c.Pay(context.Background(), "TX1")
	require.NoError(t, err)
}

func TestConflictReconcilesWithoutError(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("pay", nil, errConflict)
	gw.on("detail", &models.Transaction{TrxCode: "TX1", Status: models.StatusPaid, BalanceBefore: money(100000), BalanceAfter: money(85000)}, nil)
	errorsBefore := len(c.Errors())

	out, err := c.Pay(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, out.Status)
	assert.Equal(t, models.StatusPaid, c.State().Status)
	assert.Equal(t, 1, gw.count("detail"), "exactly one reconciliation fetch")
	assert.Len(t, c.Errors(), errorsBefore)
}

func TestConflictToUnexpectedStatusIsSurfaced(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPaid)
	gw.on("issue", nil, errConflict)
	gw.on("detail", trx(models.StatusCancelled), nil)

	out, err := c.Issue(context.Background(), "TX1")
	assert.True(t, models.IsConflict(err))
	require.NotNil(t, out)
	assert.Equal(t, models.StatusCancelled, c.State().Status)
	assert.True(t, errors.Is(err, errConflict))
}

func TestConflictWithFailedReconcileSurfacesReconcileError(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("cancel", nil, errConflict)
	gw.on("detail", nil, errTimeout)

	_, err := c.Cancel(context.Background(), "TX1", "")
	assert.True(t, models.IsTransient(err))
	assert.True(t, c.State().Uncertain)
	assert.Equal(t, 1, gw.count("detail"))
}

func TestCancelRefunds(t *testing.T) {
	t.Run("from paid", func(t *testing.T) {
		gw := newFakeGateway()
		c := booked(t, gw, models.StatusPaid)
		gw.on("cancel", &models.Transaction{TrxCode: "TX1", Status: models.StatusCancelled, RefundAmount: money(15000)}, nil)

		out, err := c.Cancel(context.Background(), "TX1", "customer request")
		require.NoError(t, err)
		assert.True(t, out.RefundAmount.Decimal.IsPositive())
	})
	t.Run("from pending", func(t *testing.T) {
		gw := newFakeGateway()
		c := booked(t, gw, models.StatusPending)
		gw.on("cancel", &models.Transaction{TrxCode: "TX1", Status: models.StatusCancelled, RefundAmount: money(0)}, nil)

		out, err := c.Cancel(context.Background(), "TX1", "")
		require.NoError(t, err)
		assert.True(t, out.RefundAmount.Valid)
		assert.True(t, out.RefundAmount.Decimal.IsZero())
	})
}

func TestRepeatedDetailOnlyMovesForward(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("detail", trx(models.StatusPending), nil).
		on("detail", trx(models.StatusPaid), nil).
		on("detail", trx(models.StatusPending), nil).
		on("detail", trx(models.StatusPaid), nil)

	var seen []models.TransactionStatus
	for i := 0; i < 4; i++ {
		_, err := c.Refresh(context.Background(), "TX1")
		if i == 2 {
			assert.True(t, models.IsProtocol(err), "backward move is rejected")
		} else {
			require.NoError(t, err)
		}
		state := c.State()
		assert.Equal(t, "TX1", state.TrxCode)
		seen = append(seen, state.Status)
	}
	assert.Equal(t, []models.TransactionStatus{models.StatusPending, models.StatusPaid, models.StatusPaid, models.StatusPaid}, seen)
}

func TestDetailForAnotherTransactionIsProtocolError(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("detail", &models.Transaction{TrxCode: "TX2", Status: models.StatusPaid}, nil)

	_, err := c.Refresh(context.Background(), "TX1")
	assert.True(t, models.IsProtocol(err))
	assert.Equal(t, "TX1", c.State().TrxCode)
	assert.Equal(t, models.StatusPending, c.State().Status)
}

func TestConcurrentMutationIsBusy(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)

	gw.mu.Lock()
	gw.gate = make(chan struct{})
	gw.started = make(chan string, 4)
	gw.mu.Unlock()
	gw.on("pay", trx(models.StatusPaid), nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Pay(context.Background(), "TX1")
		done <- err
	}()
	require.Equal(t, "pay", <-gw.started)

	state := c.State()
	assert.True(t, state.Busy)
	assert.Equal(t, "pay", state.InFlight)

	_, err := c.Pay(context.Background(), "TX1")
	assert.True(t, models.IsBusy(err))
	_, err = c.Cancel(context.Background(), "TX1", "")
	assert.True(t, models.IsBusy(err))

	close(gw.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gw.count("pay"))
	assert.Zero(t, gw.count("cancel"))
	assert.False(t, c.State().Busy)
	assert.Equal(t, models.StatusPaid, c.State().Status)
}

func TestRefreshSentBeforeTimeoutKeepsUncertain(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)

	payGate, detailGate := make(chan struct{}), make(chan struct{})
	gw.mu.Lock()
	gw.gates = map[string]chan struct{}{"pay": payGate, "detail": detailGate}
	gw.started = make(chan string, 4)
	gw.mu.Unlock()
	gw.on("pay", nil, errTimeout).on("detail", trx(models.StatusPending), nil)

	payDone := make(chan error, 1)
	go func() {
		_, err := c.Pay(context.Background(), "TX1")
		payDone <- err
	}()
	require.Equal(t, "pay", <-gw.started)

	refreshDone := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), "TX1")
		refreshDone <- err
	}()
	require.Equal(t, "detail", <-gw.started)

	close(payGate)
	require.True(t, models.IsTransient(<-payDone))
	require.True(t, c.State().Uncertain)

	// The detail request left before the pay outcome became unknown.
	close(detailGate)
	require.NoError(t, <-refreshDone)
	state := c.State()
	assert.True(t, state.Uncertain)
	assert.Equal(t, "pay", state.UncertainOp)

	_, err := c.Pay(context.Background(), "TX1")
	assert.True(t, models.IsUncertain(err))
	assert.Equal(t, 1, gw.count("pay"), "no second debit before reconciliation")

	gw.on("detail", trx(models.StatusPaid), nil)
	out, err := c.Refresh(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, out.Status)
	assert.False(t, c.State().Uncertain, "a refresh sent after the timeout resolves it")
}

func TestCallerCancellationDoesNotAbortMutation(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)

	gw.mu.Lock()
	gw.gate = make(chan struct{})
	gw.started = make(chan string, 1)
	gw.mu.Unlock()
	gw.on("pay", trx(models.StatusPaid), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Pay(ctx, "TX1")
		done <- err
	}()
	<-gw.started
	cancel()
	close(gw.gate)

	require.NoError(t, <-done)
	assert.Equal(t, models.StatusPaid, c.State().Status)
}

func TestResultOfSupersededSessionIsDiscarded(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)

	gw.mu.Lock()
	gw.gate = make(chan struct{})
	gw.started = make(chan string, 1)
	gw.mu.Unlock()
	gw.on("pay", trx(models.StatusPaid), nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Pay(context.Background(), "TX1")
		done <- err
	}()
	<-gw.started

	epoch := c.Reset()
	close(gw.gate)
	require.NoError(t, <-done)

	assert.Nil(t, c.Snapshot())
	assert.Equal(t, State{Epoch: epoch}, c.State())
}

func TestSupersededBookIsNotLoaded(t *testing.T) {
	gw := newFakeGateway()
	c := NewCoordinator(gw, nil)

	gw.mu.Lock()
	gw.gate = make(chan struct{})
	gw.started = make(chan string, 1)
	gw.mu.Unlock()
	gw.on("book", trx(models.StatusPending), nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Book(context.Background(), bookOneSeat)
		done <- err
	}()
	<-gw.started

	c.Reset()
	assert.False(t, c.State().Busy, "reset releases the in-flight guard")
	close(gw.gate)
	require.NoError(t, <-done)
	assert.Nil(t, c.Snapshot())
}

func TestBookTimeoutBlocksUntilReset(t *testing.T) {
	gw := newFakeGateway()
	c := NewCoordinator(gw, nil)
	gw.on("book", nil, errTimeout)

	_, err := c.Book(context.Background(), bookOneSeat)
	assert.True(t, models.IsTransient(err))
	assert.True(t, c.State().Uncertain)

	_, err = c.Book(context.Background(), bookOneSeat)
	assert.True(t, models.IsUncertain(err))
	assert.Equal(t, 1, gw.count("book"))

	c.Reset()
	gw.on("book", trx(models.StatusPending), nil)
	_, err = c.Book(context.Background(), bookOneSeat)
	require.NoError(t, err)
}

func TestReconcileIfCurrent(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("pay", nil, errTimeout)
	_, _ = c.Pay(context.Background(), "TX1")

	attempted, err := c.ReconcileIfCurrent(context.Background(), "TX-OTHER")
	assert.False(t, attempted)
	assert.NoError(t, err)

	gw.on("detail", trx(models.StatusPaid), nil)
	attempted, err = c.ReconcileIfCurrent(context.Background(), "TX1")
	assert.True(t, attempted)
	require.NoError(t, err)
	assert.False(t, c.State().Uncertain)
	assert.Equal(t, models.StatusPaid, c.State().Status)
	assert.Equal(t, 1, gw.count("pay"), "reconciliation never re-issues the mutation")
}

func TestJournalRecordsAppliedSnapshots(t *testing.T) {
	gw := newFakeGateway()
	journal := &recordingJournal{}
	c := booked(t, gw, models.StatusPaid, WithJournal(journal))
	gw.on("issue", nil, errConflict).on("detail", trx(models.StatusIssued), nil)

	_, err := c.Issue(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, []string{"book:pending", "pay:paid", "issue:reconcile:issued"}, journal.ops)
}

func TestErrorsAreRecordedAndDrained(t *testing.T) {
	gw := newFakeGateway()
	c := NewCoordinator(gw, nil)

	for i := 0; i < maxRecordedErrors+5; i++ {
		_, _ = c.Pay(context.Background(), "TX1")
	}
	assert.Len(t, c.Errors(), maxRecordedErrors)

	drained := c.DrainErrors()
	assert.Len(t, drained, maxRecordedErrors)
	assert.Empty(t, c.Errors())

	e := c.RecordError("search", errors.New("dial tcp: connection refused"))
	assert.Equal(t, models.KindTransientFailure, e.Kind)
	assert.Len(t, c.Errors(), 1)
}

func TestStateIsConsistentUnderConcurrentReaders(t *testing.T) {
	gw := newFakeGateway()
	c := booked(t, gw, models.StatusPending)
	gw.on("pay", trx(models.StatusPaid), nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					s := c.State()
					if s.Status != models.StatusPending && s.Status != models.StatusPaid {
						t.Errorf("unexpected status %q", s.Status)
					}
				}
			}
		}()
	}
	_, err := c.Pay(context.Background(), "TX1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	close(stop)
	wg.Wait()
}
