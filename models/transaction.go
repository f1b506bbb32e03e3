package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the server-reported lifecycle status of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusPaid      TransactionStatus = "paid"
	StatusIssued    TransactionStatus = "issued"
	StatusCancelled TransactionStatus = "cancelled"
)

// ParseStatus normalizes a raw status string. ok is false for anything outside the lifecycle.
func ParseStatus(raw string) (TransactionStatus, bool) {
	switch s := TransactionStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusPaid, StatusIssued, StatusCancelled:
		return s, true
	case "canceled":
		return StatusCancelled, true
	}
	return "", false
}

func (s TransactionStatus) Terminal() bool {
	return s == StatusIssued || s == StatusCancelled
}

// CanAdvanceTo reports whether moving from s to next never goes backward along
// pending -> paid -> issued, or into cancelled from a non-terminal status.
// Staying on the same status is allowed.
func (s TransactionStatus) CanAdvanceTo(next TransactionStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusPaid || next == StatusIssued || next == StatusCancelled
	case StatusPaid:
		return next == StatusIssued || next == StatusCancelled
	}
	return false
}

// Passenger is supplied by the caller, one per seat.
type Passenger struct {
	Name           string `json:"name"`
	IdentityNumber string `json:"identity_number"`
}

// BookRequest is the payload of /transactions/book.
type BookRequest struct {
	ProviderCode string      `json:"provider_code"`
	TravelDate   string      `json:"travel_date"`
	Seats        []string    `json:"seats"`
	Passengers   []Passenger `json:"passengers"`
}

// Transaction is the client-side cache of the server's authoritative transaction.
// Money fields stay invalid until the server reports them.
type Transaction struct {
	TrxCode       string              `json:"trx_code" bson:"trx_code"`
	Status        TransactionStatus   `json:"status" bson:"status"`
	ProviderCode  string              `json:"provider_code,omitempty" bson:"provider_code,omitempty"`
	TravelDate    string              `json:"travel_date,omitempty" bson:"travel_date,omitempty"`
	Seats         SeatCodes           `json:"seats,omitempty" bson:"seats,omitempty"`
	Passengers    []Passenger         `json:"passengers,omitempty" bson:"passengers,omitempty"`
	Amount        decimal.NullDecimal `json:"amount" bson:"-"`
	BalanceBefore decimal.NullDecimal `json:"balance_before" bson:"-"`
	BalanceAfter  decimal.NullDecimal `json:"balance_after" bson:"-"`
	FeeEarned     decimal.NullDecimal `json:"fee_earned" bson:"-"`
	RefundAmount  decimal.NullDecimal `json:"refund_amount" bson:"-"`
	CancelReason  string              `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	CreatedAt     string              `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt     string              `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

func (t *Transaction) IsPending() bool   { return t != nil && t.Status == StatusPending }
func (t *Transaction) IsPaid() bool      { return t != nil && t.Status == StatusPaid }
func (t *Transaction) IsIssued() bool    { return t != nil && t.Status == StatusIssued }
func (t *Transaction) IsCancelled() bool { return t != nil && t.Status == StatusCancelled }

// Clone returns a deep copy safe to hand to callers.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.Seats = append(SeatCodes(nil), t.Seats...)
	c.Passengers = append([]Passenger(nil), t.Passengers...)
	return &c
}

// Merge overlays the fields the server reported in next onto t. Fields the server
// omitted keep their cached value; nothing is computed locally.
func (t *Transaction) Merge(next *Transaction) {
	if next == nil {
		return
	}
	if next.TrxCode != "" {
		t.TrxCode = next.TrxCode
	}
	if next.Status != "" {
		t.Status = next.Status
	}
	if next.ProviderCode != "" {
		t.ProviderCode = next.ProviderCode
	}
	if next.TravelDate != "" {
		t.TravelDate = next.TravelDate
	}
	if len(next.Seats) > 0 {
		t.Seats = append(SeatCodes(nil), next.Seats...)
	}
	if len(next.Passengers) > 0 {
		t.Passengers = append([]Passenger(nil), next.Passengers...)
	}
	mergeAmount(&t.Amount, next.Amount)
	mergeAmount(&t.BalanceBefore, next.BalanceBefore)
	mergeAmount(&t.BalanceAfter, next.BalanceAfter)
	mergeAmount(&t.FeeEarned, next.FeeEarned)
	mergeAmount(&t.RefundAmount, next.RefundAmount)
	if next.CancelReason != "" {
		t.CancelReason = next.CancelReason
	}
	if next.CreatedAt != "" {
		t.CreatedAt = next.CreatedAt
	}
	if next.UpdatedAt != "" {
		t.UpdatedAt = next.UpdatedAt
	}
}

func mergeAmount(dst *decimal.NullDecimal, src decimal.NullDecimal) {
	if src.Valid {
		*dst = src
	}
}

// SeatCodes decodes either a list of seat ids or a list of seat objects.
type SeatCodes []string

func (c *SeatCodes) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err == nil {
		*c = ids
		return nil
	}
	var seats []Seat
	if err := json.Unmarshal(b, &seats); err != nil {
		return err
	}
	out := make(SeatCodes, 0, len(seats))
	for _, s := range seats {
		out = append(out, s.SeatID)
	}
	*c = out
	return nil
}
