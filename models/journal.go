package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is one applied transaction snapshot, kept for audit.
// Money is stored as exact decimal strings.
type JournalEntry struct {
	ID            string            `bson:"id" json:"id"`
	Op            string            `bson:"op" json:"op"`
	TrxCode       string            `bson:"trxCode" json:"trx_code"`
	Status        TransactionStatus `bson:"status" json:"status"`
	Amount        string            `bson:"amount,omitempty" json:"amount,omitempty"`
	BalanceBefore string            `bson:"balanceBefore,omitempty" json:"balance_before,omitempty"`
	BalanceAfter  string            `bson:"balanceAfter,omitempty" json:"balance_after,omitempty"`
	FeeEarned     string            `bson:"feeEarned,omitempty" json:"fee_earned,omitempty"`
	RefundAmount  string            `bson:"refundAmount,omitempty" json:"refund_amount,omitempty"`
	CancelReason  string            `bson:"cancelReason,omitempty" json:"cancel_reason,omitempty"`
	RecordedAt    time.Time         `bson:"recordedAt" json:"recorded_at"`
}

// NewJournalEntry captures trx as reported by the server. ID is left to the repository.
func NewJournalEntry(op string, trx *Transaction, at time.Time) JournalEntry {
	return JournalEntry{
		Op:            op,
		TrxCode:       trx.TrxCode,
		Status:        trx.Status,
		Amount:        moneyString(trx.Amount),
		BalanceBefore: moneyString(trx.BalanceBefore),
		BalanceAfter:  moneyString(trx.BalanceAfter),
		FeeEarned:     moneyString(trx.FeeEarned),
		RefundAmount:  moneyString(trx.RefundAmount),
		CancelReason:  trx.CancelReason,
		RecordedAt:    at,
	}
}

func moneyString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
