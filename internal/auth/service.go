package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/config"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/logger"
	"github.com/abhisek/igcseprep/internal/store"
)

type RegisterRequest struct {
	Email    string       `json:"email" binding:"required,email" validate:"required,email"`
	Password string       `json:"password" binding:"required,min=8" validate:"required,min=8"`
	FullName string       `json:"full_name" binding:"max=200" validate:"max=200"`
	Role     content.Role `json:"-"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Service handles registration, login and token rotation.
type Service struct {
	users      *store.UserRepo
	jwt        *JWTService
	bcryptCost int
	validate   *validator.Validate
}

func NewService(cfg config.AuthConfig, st *store.Store) *Service {
	users := st.Users()
	return &Service{
		users:      users,
		jwt:        NewJWTService(cfg, users),
		bcryptCost: cfg.BcryptCost,
		validate:   validator.New(),
	}
}

// JWT exposes the token service for middleware.
func (s *Service) JWT() *JWTService { return s.jwt }

// Register creates an account and signs the user in. Role defaults to
// student; only trusted callers set it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*content.User, *TokenPair, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, requestErrors(err)
	}
	switch req.Role {
	case "":
		req.Role = content.RoleStudent
	case content.RoleStudent, content.RoleAdmin:
	default:
		return nil, nil, apperrors.Validation("invalid role", map[string]string{"role": "must be student or admin"})
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, nil, apperrors.Conflict("email already registered")
	} else if !store.IsNotFound(err) {
		return nil, nil, err
	}

	hash, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	u := &content.User{
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, nil, err
	}
	pair, err := s.jwt.GenerateTokenPair(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("user registered")
	return u, pair, nil
}

// Login checks credentials. Unknown emails and wrong passwords both return
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*content.User, *TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil, apperrors.ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !CheckPassword(u.PasswordHash, req.Password) {
		return nil, nil, apperrors.ErrInvalidCredentials
	}
	pair, err := s.jwt.GenerateTokenPair(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// Refresh revokes the presented refresh token and issues a new pair.
func (s *Service) Refresh(ctx context.Context, token string) (*TokenPair, error) {
	rt, err := s.users.GetRefreshToken(ctx, token)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, err
	}
	if rt.Revoked {
		return nil, apperrors.ErrTokenRevoked
	}
	if !s.jwt.now().Before(rt.ExpiresAt) {
		return nil, apperrors.ErrTokenExpired
	}
	u, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, apperrors.ErrTokenInvalid
		}
		return nil, err
	}
	if err := s.users.ConsumeRefreshToken(ctx, token); err != nil {
		return nil, err
	}
	return s.jwt.GenerateTokenPair(ctx, u)
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.users.RevokeRefreshToken(ctx, token); err != nil && !store.IsNotFound(err) {
		return err
	}
	return nil
}

// Me returns the account behind an access token's claims.
func (s *Service) Me(ctx context.Context, userID string) (*content.User, error) {
	return s.users.GetByID(ctx, userID)
}

func requestErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(apperrors.ErrValidation, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			fields[name] = "is required"
		case "email":
			fields[name] = "must be a valid email address"
		case "min":
			fields[name] = fmt.Sprintf("must be at least %s characters", fe.Param())
		default:
			fields[name] = "failed " + fe.Tag()
		}
	}
	return apperrors.Validation("invalid registration", fields)
}
