package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/igcseprep/internal/apperrors"
	"github.com/abhisek/igcseprep/internal/content"
)

var userColumns = []string{"id", "email", "full_name", "role", "password_hash", "created_at"}

type userRow struct {
	ID           string    `sql:"id"`
	Email        string    `sql:"email"`
	FullName     string    `sql:"full_name"`
	Role         string    `sql:"role"`
	PasswordHash string    `sql:"password_hash"`
	CreatedAt    time.Time `sql:"created_at"`
}

func (r userRow) toUser() content.User {
	return content.User{
		ID:           r.ID,
		Email:        r.Email,
		FullName:     r.FullName,
		Role:         content.Role(r.Role),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

// RefreshToken is a persisted, revocable refresh token.
type RefreshToken struct {
	Token     string    `sql:"token"`
	UserID    string    `sql:"user_id"`
	ExpiresAt time.Time `sql:"expires_at"`
	Revoked   bool      `sql:"revoked"`
	CreatedAt time.Time `sql:"created_at"`
}

// UserRepo stores accounts and refresh tokens.
type UserRepo struct {
	c conn
}

// Create inserts u, assigning an ID and timestamp. Emails are stored lowercase.
func (r *UserRepo) Create(ctx context.Context, u *content.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = content.RoleStudent
	}
	u.CreatedAt = now()
	q := r.c.b().Insert("users").
		Columns(userColumns...).
		Values(u.ID, u.Email, u.FullName, string(u.Role), u.PasswordHash, u.CreatedAt)
	return translate(r.c.exec(ctx, q), "user")
}

func (r *UserRepo) get(ctx context.Context, p *entsql.Predicate, key string) (*content.User, error) {
	var rows []userRow
	sel := r.c.b().Select(userColumns...).From(r.c.table("users")).Where(p)
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	row, err := one(rows, "user", key)
	if err != nil {
		return nil, err
	}
	u := row.toUser()
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*content.User, error) {
	return r.get(ctx, entsql.EQ("id", id), id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*content.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.get(ctx, entsql.EQ("email", email), email)
}

func (r *UserRepo) SaveRefreshToken(ctx context.Context, t RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	q := r.c.b().Insert("refresh_tokens").
		Columns("token", "user_id", "expires_at", "revoked", "created_at").
		Values(t.Token, t.UserID, t.ExpiresAt.UTC(), t.Revoked, t.CreatedAt)
	return translate(r.c.exec(ctx, q), "refresh token")
}

func (r *UserRepo) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	var rows []RefreshToken
	sel := r.c.b().Select("token", "user_id", "expires_at", "revoked", "created_at").
		From(r.c.table("refresh_tokens")).
		Where(entsql.EQ("token", token))
	if err := r.c.query(ctx, sel, &rows); err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return one(rows, "refresh token", "")
}

// RevokeRefreshToken marks a token unusable. Revoking twice is not an error.
func (r *UserRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	n, err := r.c.execAffected(ctx, r.c.b().Update("refresh_tokens").
		Set("revoked", true).
		Where(entsql.EQ("token", token)))
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if n == 0 {
		return notFound("refresh token", "")
	}
	return nil
}

// ConsumeRefreshToken revokes a live token for rotation. Only one caller can
// consume a given token; later calls, and calls on a token that was already
// revoked or never existed, fail with apperrors.ErrTokenRevoked.
func (r *UserRepo) ConsumeRefreshToken(ctx context.Context, token string) error {
	n, err := r.c.execAffected(ctx, r.c.b().Update("refresh_tokens").
		Set("revoked", true).
		Where(entsql.And(
			entsql.EQ("token", token),
			entsql.EQ("revoked", false),
		)))
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	if n == 0 {
		return apperrors.ErrTokenRevoked
	}
	return nil
}
