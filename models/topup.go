package models

import "github.com/shopspring/decimal"

// Top-up payment methods accepted by /topups.
const (
	TopupTransfer = "transfer"
	TopupVA       = "va"
	TopupEwallet  = "ewallet"
)

// Topup is a request to add funds to the prepaid balance.
// Status is one of pending, success, rejected and is decided by an admin server-side.
type Topup struct {
	ID            int64           `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	CreatedAt     string          `json:"created_at"`
}

// TopupRequest is sent as a multipart form; Proof is the optional transfer receipt.
type TopupRequest struct {
	Amount        decimal.Decimal
	PaymentMethod string
	ProofName     string
	Proof         []byte
}

func ValidTopupMethod(method string) bool {
	switch method {
	case TopupTransfer, TopupVA, TopupEwallet:
		return true
	}
	return false
}
