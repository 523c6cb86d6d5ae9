package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense/internal/models"
)

type sqliteRecommendationRepo struct {
	db *sql.DB
}

func (r *sqliteRecommendationRepo) Create(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	query := `
		INSERT INTO recommendations (
			id, alert_id, action_type, explanation, confidence, urgency, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.AlertID, rec.ActionType, rec.Explanation,
		rec.Confidence, rec.Urgency, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

func (r *sqliteRecommendationRepo) ListByAlert(ctx context.Context, alertID string) ([]*models.Recommendation, error) {
	query := `
		SELECT id, alert_id, action_type, explanation, confidence, urgency, created_at
		FROM recommendations
		WHERE alert_id = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*models.Recommendation
	for rows.Next() {
		rec := &models.Recommendation{}
		err := rows.Scan(
			&rec.ID, &rec.AlertID, &rec.ActionType, &rec.Explanation,
			&rec.Confidence, &rec.Urgency, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *sqliteRecommendationRepo) DeleteByAlert(ctx context.Context, alertID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM recommendations WHERE alert_id = ?", alertID)
	if err != nil {
		return fmt.Errorf("delete recommendations: %w", err)
	}
	return nil
}
