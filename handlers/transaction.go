package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	journalRepo "mitra/database/repository/journal"
	"mitra/models"
	"mitra/services/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TransactionHandler exposes the booking session over HTTP.
type TransactionHandler struct {
	Service booking.BookingSessionService
	// Journal is nil when the journal is disabled.
	Journal journalRepo.TransactionJournalRepository
}

func NewTransactionHandler(service booking.BookingSessionService, journal journalRepo.TransactionJournalRepository) *TransactionHandler {
	return &TransactionHandler{Service: service, Journal: journal}
}

type selectRequest struct {
	ProviderCode string             `json:"provider_code"`
	Seats        []string           `json:"seats"`
	Passengers   []models.Passenger `json:"passengers"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// SearchHandler runs a new inventory search. It drops the previous transaction.
func (h *TransactionHandler) SearchHandler(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "search", err)
		return
	}
	schedules, err := h.Service.Search(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (h *TransactionHandler) SeatMapHandler(c *gin.Context) {
	m, err := h.Service.SeatMap(c.Request.Context(), c.Param("providerCode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *TransactionHandler) SelectHandler(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "select", err)
		return
	}
	sel, err := h.Service.Select(c.Request.Context(), req.ProviderCode, req.Seats, req.Passengers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

// BookHandler books the current selection.
func (h *TransactionHandler) BookHandler(c *gin.Context) {
	trx, err := h.Service.Book(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	getLogger(c).Info("Transaction booked", zap.String("trx_code", trx.TrxCode))
	c.JSON(http.StatusCreated, trx)
}

func (h *TransactionHandler) PayHandler(c *gin.Context) {
	h.transition(c, h.Service.Pay)
}

func (h *TransactionHandler) IssueHandler(c *gin.Context) {
	h.transition(c, h.Service.Issue)
}

func (h *TransactionHandler) CancelHandler(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "cancel", err)
		return
	}
	h.transition(c, func(ctx context.Context, code string) (*models.Transaction, error) {
		return h.Service.Cancel(ctx, code, req.Reason)
	})
}

// RefreshHandler re-fetches the transaction detail from the partner API.
func (h *TransactionHandler) RefreshHandler(c *gin.Context) {
	h.transition(c, h.Service.Refresh)
}

func (h *TransactionHandler) transition(c *gin.Context, call func(context.Context, string) (*models.Transaction, error)) {
	trx, err := call(c.Request.Context(), c.Param("trxCode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trx)
}

// HistoryHandler lists the journal entries recorded for a transaction.
func (h *TransactionHandler) HistoryHandler(c *gin.Context) {
	if h.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Transaction journal is disabled"})
		return
	}
	entries, err := h.Journal.History(c.Request.Context(), c.Param("trxCode"))
	if err != nil {
		getLogger(c).Error("Failed to load transaction history", zap.String("trx_code", c.Param("trxCode")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load transaction history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// SessionHandler returns the whole session: coordinator state, transaction,
// search results and selection.
func (h *TransactionHandler) SessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Current())
}

// ErrorsHandler lists recorded failures; ?drain=true empties the list.
func (h *TransactionHandler) ErrorsHandler(c *gin.Context) {
	errs := h.Service.Errors(c.Query("drain") == "true")
	if errs == nil {
		errs = []*models.Error{}
	}
	c.JSON(http.StatusOK, gin.H{"errors": errs})
}

func (h *TransactionHandler) ResetHandler(c *gin.Context) {
	h.Service.Reset(c.Request.Context())
	c.Status(http.StatusNoContent)
}
