package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mitra/models"
	"mitra/services/transport"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Doer is the transport surface the gateway needs.
type Doer interface {
	Do(ctx context.Context, method, path string, body any) (*transport.Response, error)
}

// Gateway maps each domain operation onto exactly one partner API request and
// unwraps the response envelope. It keeps no state.
type Gateway struct {
	client Doer
	logger *zap.Logger
}

func New(client Doer, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: client, logger: logger}
}

type cancelBody struct {
	Reason string `json:"reason,omitempty"`
}

// call runs one request and records its metrics.
func (g *Gateway) call(ctx context.Context, operation, method, path string, body any) (*transport.Response, error) {
	timer := prometheus.NewTimer(gatewayLatency.WithLabelValues(operation))
	defer timer.ObserveDuration()

	resp, err := g.client.Do(ctx, method, path, body)
	observe(operation, err)
	return resp, err
}

// Search returns the schedules matching the query. An empty list is not an error.
func (g *Gateway) Search(ctx context.Context, req models.SearchRequest) ([]models.Schedule, error) {
	const op = "search"
	resp, err := g.call(ctx, op, http.MethodPost, "/transactions/search", req)
	if err != nil {
		return nil, err
	}
	var schedules []models.Schedule
	if err := decodeInto(op, resp.Body, &schedules); err != nil {
		return nil, err
	}
	if schedules == nil {
		schedules = []models.Schedule{}
	}
	return schedules, nil
}

// SeatMap fetches the seats of one provider code. Backends answer with
// {seats: [...]}, sometimes nested once more under data, or with the bare list.
func (g *Gateway) SeatMap(ctx context.Context, providerCode string) (*models.SeatMap, error) {
	const op = "seat_map"
	providerCode = strings.TrimSpace(providerCode)
	if providerCode == "" {
		return nil, models.NewError(models.KindInvalidArgument, op, "provider_code is required")
	}
	resp, err := g.call(ctx, op, http.MethodPost, "/transactions/seat-map", map[string]string{"provider_code": providerCode})
	if err != nil {
		return nil, err
	}
	raw, err := payload(op, resp.Body)
	if err != nil {
		return nil, err
	}
	seats, err := decodeSeats(op, raw)
	if err != nil {
		return nil, err
	}
	return &models.SeatMap{ProviderCode: providerCode, Seats: seats}, nil
}

func decodeSeats(op string, raw json.RawMessage) ([]models.Seat, error) {
	seats := []models.Seat{}
	if isStructured(raw) && strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		if err := json.Unmarshal(raw, &seats); err != nil {
			return nil, models.WrapError(models.KindProtocol, op, fmt.Errorf("decode seats: %w", err))
		}
		return seats, nil
	}
	var obj struct {
		Seats []models.Seat `json:"seats"`
		Data  *struct {
			Seats []models.Seat `json:"seats"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, models.WrapError(models.KindProtocol, op, fmt.Errorf("decode seat map: %w", err))
	}
	switch {
	case obj.Seats != nil:
		seats = obj.Seats
	case obj.Data != nil && obj.Data.Seats != nil:
		seats = obj.Data.Seats
	}
	return seats, nil
}

// Book creates one remote transaction. Each successful call allocates new
// inventory holds, so callers must not repeat it for the same reservation.
func (g *Gateway) Book(ctx context.Context, req models.BookRequest) (*models.Transaction, error) {
	const op = "book"
	resp, err := g.call(ctx, op, http.MethodPost, "/transactions/book", req)
	if err != nil {
		return nil, err
	}
	return decodeTransaction(op, resp.Body)
}

func (g *Gateway) Pay(ctx context.Context, trxCode string) (*models.Transaction, error) {
	const op = "pay"
	if err := requireCode(op, trxCode); err != nil {
		return nil, err
	}
	resp, err := g.call(ctx, op, http.MethodPost, "/transactions/pay", map[string]string{"trx_code": trxCode})
	if err != nil {
		return nil, err
	}
	return decodeTransaction(op, resp.Body)
}

func (g *Gateway) Issue(ctx context.Context, trxCode string) (*models.Transaction, error) {
	const op = "issue"
	if err := requireCode(op, trxCode); err != nil {
		return nil, err
	}
	resp, err := g.call(ctx, op, http.MethodPost, "/transactions/"+url.PathEscape(trxCode)+"/issue", nil)
	if err != nil {
		return nil, err
	}
	return decodeTransaction(op, resp.Body)
}

func (g *Gateway) Cancel(ctx context.Context, trxCode, reason string) (*models.Transaction, error) {
	const op = "cancel"
	if err := requireCode(op, trxCode); err != nil {
		return nil, err
	}
	resp, err := g.call(ctx, op, http.MethodPost, "/transactions/"+url.PathEscape(trxCode)+"/cancel", cancelBody{Reason: strings.TrimSpace(reason)})
	if err != nil {
		return nil, err
	}
	return decodeTransaction(op, resp.Body)
}

// Detail is a read-only refresh and always safe to retry.
func (g *Gateway) Detail(ctx context.Context, trxCode string) (*models.Transaction, error) {
	const op = "detail"
	if err := requireCode(op, trxCode); err != nil {
		return nil, err
	}
	resp, err := g.call(ctx, op, http.MethodGet, "/transactions/"+url.PathEscape(trxCode), nil)
	if err != nil {
		return nil, err
	}
	return decodeTransaction(op, resp.Body)
}

// Login exchanges credentials for a bearer token. The token may sit under the
// usual envelope or at the top level of the body.
func (g *Gateway) Login(ctx context.Context, creds models.LoginCredentials) (*models.LoginResponse, error) {
	const op = "login"
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, models.NewError(models.KindInvalidArgument, op, "email and password are required")
	}
	resp, err := g.call(ctx, op, http.MethodPost, "/auth/login", creds)
	if err != nil {
		return nil, err
	}

	var out models.LoginResponse
	if err := decodeInto(op, resp.Body, &out); err != nil || out.Token == "" {
		out = models.LoginResponse{}
		if jerr := json.Unmarshal(resp.Body, &out); jerr != nil || out.Token == "" {
			return nil, models.NewError(models.KindProtocol, op, "login response carries no token")
		}
	}
	return &out, nil
}

func (g *Gateway) ListTopups(ctx context.Context) ([]models.Topup, error) {
	const op = "list_topups"
	resp, err := g.call(ctx, op, http.MethodGet, "/topups", nil)
	if err != nil {
		return nil, err
	}
	var topups []models.Topup
	if err := decodeInto(op, resp.Body, &topups); err != nil {
		return nil, err
	}
	if topups == nil {
		topups = []models.Topup{}
	}
	return topups, nil
}

// CreateTopup submits a balance top-up request as a multipart form.
func (g *Gateway) CreateTopup(ctx context.Context, req models.TopupRequest) (*models.Topup, error) {
	const op = "create_topup"
	if !req.Amount.IsPositive() {
		return nil, models.NewError(models.KindInvalidArgument, op, "amount must be greater than zero")
	}
	if !models.ValidTopupMethod(req.PaymentMethod) {
		return nil, models.NewError(models.KindInvalidArgument, op, fmt.Sprintf("unsupported payment method %q", req.PaymentMethod))
	}

	form := &transport.Multipart{
		Fields: map[string]string{
			"amount":         req.Amount.String(),
			"payment_method": req.PaymentMethod,
		},
	}
	if len(req.Proof) > 0 {
		name := req.ProofName
		if name == "" {
			name = "proof"
		}
		form.Files = append(form.Files, transport.FilePart{Field: "proof", FileName: name, Data: req.Proof})
	}

	resp, err := g.call(ctx, op, http.MethodPost, "/topups", form)
	if err != nil {
		return nil, err
	}
	var topup models.Topup
	if err := decodeInto(op, resp.Body, &topup); err != nil {
		return nil, err
	}
	g.logger.Info("Top-up submitted", zap.Int64("topup_id", topup.ID), zap.String("amount", topup.Amount.String()))
	return &topup, nil
}

func requireCode(op, trxCode string) error {
	if strings.TrimSpace(trxCode) == "" {
		return models.NewError(models.KindInvalidArgument, op, "trx_code is required")
	}
	return nil
}
