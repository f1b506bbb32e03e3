package handlers

import (
	"context"
	"io"
	"net/http"

	"mitra/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxProofBytes = 5 << 20

// AccountService is what the account endpoints need from the account service.
type AccountService interface {
	Login(ctx context.Context, creds models.LoginCredentials) (*models.User, error)
	Logout()
	Me() (*models.User, error)
	Topups(ctx context.Context) ([]models.Topup, error)
	RequestTopup(ctx context.Context, req models.TopupRequest) (*models.Topup, error)
}

type AccountHandler struct {
	Service AccountService
}

func NewAccountHandler(service AccountService) *AccountHandler {
	return &AccountHandler{Service: service}
}

// LoginHandler signs the mitra in to the partner API.
func (h *AccountHandler) LoginHandler(c *gin.Context) {
	var creds models.LoginCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		badRequest(c, "login", err)
		return
	}
	user, err := h.Service.Login(c.Request.Context(), creds)
	if err != nil {
		respondError(c, err)
		return
	}
	getLogger(c).Info("Mitra signed in", zap.Int64("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AccountHandler) LogoutHandler(c *gin.Context) {
	h.Service.Logout()
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) MeHandler(c *gin.Context) {
	user, err := h.Service.Me()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AccountHandler) ListTopupsHandler(c *gin.Context) {
	topups, err := h.Service.Topups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topups": topups})
}

// CreateTopupHandler accepts a multipart form with amount, payment_method and an
// optional proof file.
func (h *AccountHandler) CreateTopupHandler(c *gin.Context) {
	amount, err := decimal.NewFromString(c.PostForm("amount"))
	if err != nil {
		badRequest(c, "topup", err)
		return
	}
	req := models.TopupRequest{Amount: amount, PaymentMethod: c.PostForm("payment_method")}

	if fh, err := c.FormFile("proof"); err == nil {
		if fh.Size > maxProofBytes {
			respondError(c, models.NewError(models.KindInvalidArgument, "topup", "proof file is too large"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "topup", err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxProofBytes))
		if err != nil {
			badRequest(c, "topup", err)
			return
		}
		req.ProofName = fh.Filename
		req.Proof = data
	} else if err != http.ErrMissingFile {
		badRequest(c, "topup", err)
		return
	}

	topup, err := h.Service.RequestTopup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topup)
}
