package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

const alertColumns = `
	a.id, a.plot_id, COALESCE(p.name, ''), a.sensor_type, a.anomaly_type,
	a.severity, a.value, a.confidence, COALESCE(a.message, ''),
	a.detected_at, a.resolved, a.resolved_at
`

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	query := `
		INSERT INTO alerts (
			id, plot_id, sensor_type, anomaly_type, severity, value,
			confidence, message, detected_at, resolved, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.PlotID, alert.SensorType, alert.AnomalyType,
		alert.Severity, alert.Value, alert.Confidence, alert.Message,
		alert.DetectedAt, boolToInt(alert.Resolved), alert.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts a LEFT JOIN plots p ON p.id = a.plot_id
		WHERE a.id = ?
	`, alertColumns)

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert by id: %w", err)
	}
	return alert, nil
}

func (r *sqliteAlertRepo) List(ctx context.Context, filter *AlertFilter) ([]*models.Alert, error) {
	if filter == nil {
		filter = &AlertFilter{}
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts a LEFT JOIN plots p ON p.id = a.plot_id
	`, alertColumns)

	var conds []string
	var args []any
	if filter.Resolved != nil {
		conds = append(conds, "a.resolved = ?")
		args = append(args, boolToInt(*filter.Resolved))
	}
	if filter.PlotID != "" {
		conds = append(conds, "a.plot_id = ?")
		args = append(args, filter.PlotID)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY a.detected_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func (r *sqliteAlertRepo) Resolve(ctx context.Context, id string) error {
	query := `
		UPDATE alerts SET resolved = 1, resolved_at = ?
		WHERE id = ? AND resolved = 0
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Either unknown or already resolved; distinguish for the caller.
		var exists int
		err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts WHERE id = ?", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check alert: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
		}
		// Already resolved: resolve is idempotent.
	}
	return nil
}

func (r *sqliteAlertRepo) CountUnresolved(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts WHERE resolved = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unresolved alerts: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	alert := &models.Alert{}
	var resolved int
	var resolvedAt sql.NullTime
	err := row.Scan(
		&alert.ID, &alert.PlotID, &alert.PlotName, &alert.SensorType,
		&alert.AnomalyType, &alert.Severity, &alert.Value, &alert.Confidence,
		&alert.Message, &alert.DetectedAt, &resolved, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	alert.Resolved = resolved != 0
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	return alert, nil
}
