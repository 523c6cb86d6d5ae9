// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"

	"github.com/agrisense/agrisense/internal/models"
)

// ErrAlertNotFound is returned when an alert id does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// Storage is the main interface for metadata database operations.
// Sensor readings live in ReadingStorage, which has different access
// patterns (high-volume writes, time-range queries).
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates a default admin if no users exist.
	EnsureAdminUser() error

	// Repository accessors
	Users() UserRepository
	Plots() PlotRepository
	Alerts() AlertRepository
	Recommendations() RecommendationRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// PlotRepository defines operations for plot management.
type PlotRepository interface {
	Create(ctx context.Context, plot *models.Plot) error
	GetByID(ctx context.Context, id string) (*models.Plot, error)
	GetByName(ctx context.Context, name string) (*models.Plot, error)
	Update(ctx context.Context, plot *models.Plot) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Plot, error)
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	// Resolved filters by resolution state when non-nil.
	Resolved *bool
	// PlotID filters to a single plot when non-empty.
	PlotID string
	// Limit caps the number of returned alerts (0 means no cap).
	Limit int
}

// AlertRepository defines operations for detected anomaly alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	// List returns alerts matching the filter, newest first, with
	// plot_name populated from the plots table.
	List(ctx context.Context, filter *AlertFilter) ([]*models.Alert, error)
	// Resolve marks an alert resolved. Resolving an already-resolved
	// alert is a no-op. Returns ErrNotFound semantics via nil alert from
	// GetByID; Resolve itself reports not-found as an error.
	Resolve(ctx context.Context, id string) error
	CountUnresolved(ctx context.Context) (int64, error)
}

// RecommendationRepository defines operations for advisor recommendations.
type RecommendationRepository interface {
	Create(ctx context.Context, rec *models.Recommendation) error
	ListByAlert(ctx context.Context, alertID string) ([]*models.Recommendation, error)
	DeleteByAlert(ctx context.Context, alertID string) error
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
