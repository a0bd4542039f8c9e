package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/config"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/store/storetest"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:  "test-secret-0123456789",
		Issuer:     "igcseprep-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		BcryptCost: 4,
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := ExtractBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = ExtractBearerToken("bearer  xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	_, err = ExtractBearerToken("")
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	_, err = ExtractBearerToken("Basic dXNlcg==")
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestJWTService_RoundTrip(t *testing.T) {
	st := storetest.Open(t)
	svc := NewJWTService(testAuthConfig(), st.Users())
	u := &content.User{ID: "u1", Email: "a@example.com", Role: content.RoleAdmin}
	require.NoError(t, st.Users().Create(context.Background(), u))

	pair, err := svc.GenerateTokenPair(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, 3600, pair.ExpiresIn)

	claims, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, content.RoleAdmin, claims.Role)
	assert.Equal(t, "u1", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	stored, err := st.Users().GetRefreshToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
}

func TestJWTService_Rejects(t *testing.T) {
	st := storetest.Open(t)
	cfg := testAuthConfig()
	svc := NewJWTService(cfg, st.Users())
	u := &content.User{ID: "u1", Email: "a@example.com", Role: content.RoleStudent}
	require.NoError(t, st.Users().Create(context.Background(), u))

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := svc.GenerateTokenPair(context.Background(), u)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ValidateToken(old.AccessToken)
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired), "got %v", err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid), "got %v", err)

	other := testAuthConfig()
	other.JWTSecret = "another-secret-9876543210"
	forged, err := NewJWTService(other, st.Users()).GenerateTokenPair(context.Background(), u)
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged.AccessToken)
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))

	_, err = svc.ValidateToken("")
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
}

func TestService_RegisterLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testAuthConfig(), storetest.Open(t))

	u, pair, err := svc.Register(ctx, RegisterRequest{Email: " Student@Example.com ", Password: "longenough", FullName: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", u.Email)
	assert.Equal(t, content.RoleStudent, u.Role)
	assert.NotEqual(t, "longenough", u.PasswordHash)
	assert.NotEmpty(t, pair.AccessToken)

	_, _, err = svc.Register(ctx, RegisterRequest{Email: "student@example.com", Password: "longenough"})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	_, _, err = svc.Register(ctx, RegisterRequest{Email: "new@example.com", Password: "short"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	var ce *apperrors.CustomError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Details, "password")

	_, _, err = svc.Register(ctx, RegisterRequest{Email: "not-an-email", Password: "longenough"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	logged, _, err := svc.Login(ctx, LoginRequest{Email: "STUDENT@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	_, _, err = svc.Login(ctx, LoginRequest{Email: "student@example.com", Password: "wrong-password"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
	_, _, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "longenough"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestService_RefreshRotates(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testAuthConfig(), storetest.Open(t))
	_, pair, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "longenough", Role: content.RoleAdmin})
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	claims, err := svc.JWT().ValidateToken(next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, content.RoleAdmin, claims.Role)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, apperrors.ErrTokenRevoked))

	require.NoError(t, svc.Logout(ctx, next.RefreshToken))
	_, err = svc.Refresh(ctx, next.RefreshToken)
	assert.True(t, errors.Is(err, apperrors.ErrTokenRevoked))

	_, err = svc.Refresh(ctx, "unknown")
	assert.True(t, errors.Is(err, apperrors.ErrTokenInvalid))
	assert.NoError(t, svc.Logout(ctx, "unknown"))
}

func TestService_RefreshConcurrentRotatesOnce(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testAuthConfig(), storetest.Open(t))
	_, pair, err := svc.Register(ctx, RegisterRequest{Email: "race@example.com", Password: "longenough"})
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, pair.RefreshToken)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apperrors.ErrTokenRevoked), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestService_RefreshExpired(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testAuthConfig(), storetest.Open(t))
	svc.jwt.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	_, pair, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)
	svc.jwt.now = time.Now

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))
}
