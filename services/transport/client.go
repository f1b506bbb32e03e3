package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mitra/models"
	"mitra/utils"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Response is a successful (2xx) answer of the partner API.
type Response struct {
	Status    int
	Body      []byte
	RequestID string
}

// Options configures the outbound client.
type Options struct {
	BaseURL             string
	Timeout             time.Duration
	RequestsPerSec      float64
	Burst               int
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HTTPClient          *http.Client
}

// Client issues authenticated requests against the partner API and normalizes
// every failure into a *models.Error.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	session *Session
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewClient(opts Options, session *Session, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if session == nil {
		session = NewSession("", nil)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	limit := rate.Inf
	if opts.RequestsPerSec > 0 {
		limit = rate.Limit(opts.RequestsPerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := opts.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http:    httpClient,
		session: session,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "partner-api",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only unknown-outcome failures say anything about upstream health;
		// definitive 4xx answers mean the server is alive.
		IsSuccessful: func(err error) bool {
			return err == nil || !models.IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

func (c *Client) Session() *Session { return c.session }

// BreakerState reports the partner API breaker state for health checks.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Do sends one request. body may be nil, a *Multipart, or any JSON-encodable value.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	op := method + " " + path
	isLogin := strings.HasPrefix(path, utils.LoginPath)

	if !isLogin && c.session.Expired() {
		c.session.Invalidate("token expired")
		return nil, &models.Error{Kind: models.KindUnauthorized, Op: op, Message: "Session expired, please log in again", Status: http.StatusUnauthorized}
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, models.WrapError(models.KindInvalidArgument, op, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, models.WrapError(models.KindUnavailable, op, err)
	}

	requestID := uuid.NewString()
	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.send(ctx, op, method, path, payload, contentType, requestID)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.logger.Warn("Partner API request short-circuited", zap.String("op", op), zap.Error(err))
		return nil, &models.Error{Kind: models.KindUnavailable, Op: op, Message: "Partner API is temporarily unavailable", Err: err}
	case err != nil:
		var apiErr *models.Error
		if errors.As(err, &apiErr) && apiErr.Kind == models.KindUnauthorized && !isLogin {
			c.session.Invalidate("unauthorized")
		}
		c.logger.Info("Partner API request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.String("kind", string(models.KindOf(err))),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	resp := result.(*Response)
	c.logger.Debug("Partner API request completed",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.Status),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

func (c *Client) send(ctx context.Context, op, method, path string, body []byte, contentType, requestID string) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, models.WrapError(models.KindInvalidArgument, op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, models.WrapError(models.KindTransientFailure, op, err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		// Headers arrived but the body did not: the server may have acted.
		return nil, models.WrapError(models.KindTransientFailure, op, err)
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return &Response{Status: res.StatusCode, Body: payload, RequestID: requestID}, nil
	}
	return nil, normalizeError(op, res.StatusCode, payload)
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Multipart:
		buf, ct, err := b.encode()
		if err != nil {
			return nil, "", err
		}
		return buf.Bytes(), ct, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return raw, "application/json", nil
	}
}

// normalizeError turns a non-2xx answer into the uniform {message, errors} shape.
func normalizeError(op string, status int, payload []byte) *models.Error {
	var body struct {
		Message json.RawMessage `json:"message"`
		Errors  map[string]any  `json:"errors"`
	}
	_ = json.Unmarshal(payload, &body)

	message := ""
	if len(body.Message) > 0 {
		_ = json.Unmarshal(body.Message, &message)
	}
	if message == "" {
		message = fmt.Sprintf("Request failed with status code %d", status)
	}

	return &models.Error{
		Kind:    kindForStatus(status),
		Op:      op,
		Message: message,
		Fields:  body.Errors,
		Status:  status,
	}
}

func kindForStatus(status int) models.ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return models.KindUnauthorized
	case status == http.StatusConflict:
		return models.KindConflict
	case status >= 500:
		return models.KindTransientFailure
	default:
		return models.KindRejected
	}
}
