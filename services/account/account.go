package account

import (
	"context"
	"strings"

	"mitra/models"

	"go.uber.org/zap"
)

// API is the part of the partner gateway used for the account surface.
type API interface {
	Login(ctx context.Context, creds models.LoginCredentials) (*models.LoginResponse, error)
	ListTopups(ctx context.Context) ([]models.Topup, error)
	CreateTopup(ctx context.Context, req models.TopupRequest) (*models.Topup, error)
}

// CredentialStore receives the token issued at login.
type CredentialStore interface {
	SetToken(token string, user *models.User)
	User() *models.User
	Authenticated() bool
	Invalidate(reason string)
}

// SessionPersister keeps the sign-in across restarts.
type SessionPersister interface {
	Save(ctx context.Context, token string, user *models.User) error
	Delete(ctx context.Context) error
}

// Service signs the mitra in and manages balance top-ups.
type Service struct {
	api       API
	session   CredentialStore
	persister SessionPersister
	logger    *zap.Logger
}

func NewService(api API, session CredentialStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, session: session, logger: logger}
}

// WithPersister stores successful sign-ins through p. p may be nil.
func (s *Service) WithPersister(p SessionPersister) *Service {
	s.persister = p
	return s
}

// Login exchanges credentials for a token. Only mitra accounts may drive the booking flow.
func (s *Service) Login(ctx context.Context, creds models.LoginCredentials) (*models.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		s.logger.Info("Login failed", zap.String("email", creds.Email), zap.Error(err))
		return nil, err
	}
	if resp.User.Role != "" && resp.User.Role != "mitra" {
		return nil, models.NewError(models.KindRejected, "login", "this account is not a mitra account")
	}
	user := resp.User
	s.session.SetToken(resp.Token, &user)
	if s.persister != nil {
		if err := s.persister.Save(ctx, resp.Token, &user); err != nil {
			s.logger.Warn("Failed to persist sign-in", zap.Error(err))
		}
	}
	s.logger.Info("Mitra signed in", zap.Int64("user_id", user.ID))
	return &user, nil
}

func (s *Service) Logout() {
	s.session.Invalidate("logout")
	if s.persister != nil {
		if err := s.persister.Delete(context.Background()); err != nil {
			s.logger.Warn("Failed to drop persisted sign-in", zap.Error(err))
		}
	}
}

// Me returns the signed-in user or an Unauthorized error.
func (s *Service) Me() (*models.User, error) {
	if !s.session.Authenticated() {
		return nil, models.NewError(models.KindUnauthorized, "me", "not signed in")
	}
	return s.session.User(), nil
}

func (s *Service) Topups(ctx context.Context) ([]models.Topup, error) {
	return s.api.ListTopups(ctx)
}

func (s *Service) RequestTopup(ctx context.Context, req models.TopupRequest) (*models.Topup, error) {
	return s.api.CreateTopup(ctx, req)
}
