package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense/internal/models"
)

type sqliteTokenRepo struct {
	db *sql.DB
}

func (r *sqliteTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash,
		token.ExpiresAt, token.CreatedAt, boolToInt(token.Revoked),
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token_hash = ?
	`
	var token models.RefreshToken
	var revoked int
	var revokedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash,
		&token.ExpiresAt, &token.CreatedAt, &revoked, &revokedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query refresh token: %w", err)
	}

	token.Revoked = revoked != 0
	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	return &token, nil
}

func (r *sqliteTokenRepo) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE refresh_tokens SET revoked = 1, revoked_at = ?
		WHERE token_hash = ?
	`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), tokenHash); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `
		UPDATE refresh_tokens SET revoked = 1, revoked_at = ?
		WHERE user_id = ? AND revoked = 0
	`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), userID); err != nil {
		return fmt.Errorf("revoke tokens for user: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}
