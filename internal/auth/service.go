package auth

import (
	"context"
	"errors"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/storage"
	"github.com/blueocean-labs/explorer-api/internal/validation"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// Session is the result of a successful registration or login.
type Session struct {
	Principal principal.Projection `json:"user"`
	Token     string               `json:"token"`
	ExpiresAt int64                `json:"expires_at"`
}

// Service implements registration, login and principal lookup.
type Service struct {
	store  storage.PrincipalStore
	issuer *TokenIssuer
	log    *logger.Logger
}

// NewService wires the auth service.
func NewService(store storage.PrincipalStore, issuer *TokenIssuer, log *logger.Logger) *Service {
	return &Service{store: store, issuer: issuer, log: log}
}

// Register creates a principal and issues an initial credential. The role
// defaults to analyst when blank; duplicate emails surface as conflicts.
func (s *Service) Register(ctx context.Context, email, password, roleStr string) (Session, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.Required("email", email); err != nil {
		return Session{}, err
	}
	if err := validation.Email(email); err != nil {
		return Session{}, err
	}
	if err := validation.Password(password); err != nil {
		return Session{}, err
	}

	role := principal.RoleAnalyst
	if roleStr != "" {
		parsed, err := principal.Parse(roleStr)
		if err != nil {
			return Session{}, apperr.Validation("role is invalid")
		}
		role = parsed
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, apperr.Internal("hash password", err)
	}

	created, err := s.store.CreatePrincipal(ctx, principal.Principal{
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return Session{}, apperr.Conflict("email already registered")
		}
		return Session{}, apperr.Internal("create principal", err)
	}

	s.log.WithContext(ctx).WithField("email", email).Info("principal registered")
	return s.session(created, false)
}

// Login verifies a credential pair and issues a token. Unknown email and bad
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (Session, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.Required("email", email); err != nil {
		return Session{}, err
	}
	if err := validation.Required("password", password); err != nil {
		return Session{}, err
	}

	p, err := s.store.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperr.Unauthorized("invalid credentials")
		}
		return Session{}, apperr.Internal("load principal", err)
	}
	if !CheckPassword(p.PasswordHash, password) {
		return Session{}, apperr.Unauthorized("invalid credentials")
	}

	s.log.WithContext(ctx).WithField("email", email).Info("principal logged in")
	return s.session(p, remember)
}

// Me returns the current principal for a verified id.
func (s *Service) Me(ctx context.Context, id string) (principal.Projection, error) {
	p, err := s.store.GetPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return principal.Projection{}, apperr.PrincipalNotFound(id)
		}
		return principal.Projection{}, apperr.Internal("load principal", err)
	}
	return p.Project(), nil
}

func (s *Service) session(p principal.Principal, remember bool) (Session, error) {
	token, expiresAt, err := s.issuer.Issue(p, remember)
	if err != nil {
		return Session{}, err
	}
	return Session{Principal: p.Project(), Token: token, ExpiresAt: expiresAt.Unix()}, nil
}
