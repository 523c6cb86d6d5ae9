package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense/internal/models"
)

type sqlitePlotRepo struct {
	db *sql.DB
}

func (r *sqlitePlotRepo) Create(ctx context.Context, plot *models.Plot) error {
	if plot.ID == "" {
		plot.ID = uuid.New().String()
	}
	query := `
		INSERT INTO plots (id, name, crop_variety, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		plot.ID, plot.Name, plot.CropVariety, plot.CreatedAt, plot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plot: %w", err)
	}
	return nil
}

func (r *sqlitePlotRepo) GetByID(ctx context.Context, id string) (*models.Plot, error) {
	return r.getOne(ctx, "id", id)
}

func (r *sqlitePlotRepo) GetByName(ctx context.Context, name string) (*models.Plot, error) {
	return r.getOne(ctx, "name", name)
}

func (r *sqlitePlotRepo) getOne(ctx context.Context, column, value string) (*models.Plot, error) {
	query := fmt.Sprintf(`
		SELECT id, name, crop_variety, created_at, updated_at
		FROM plots WHERE %s = ?
	`, column)
	plot := &models.Plot{}
	var cropVariety sql.NullString
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&plot.ID, &plot.Name, &cropVariety, &plot.CreatedAt, &plot.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plot by %s: %w", column, err)
	}
	plot.CropVariety = cropVariety.String
	return plot, nil
}

func (r *sqlitePlotRepo) Update(ctx context.Context, plot *models.Plot) error {
	query := `
		UPDATE plots SET name = ?, crop_variety = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		plot.Name, plot.CropVariety, plot.UpdatedAt, plot.ID,
	)
	if err != nil {
		return fmt.Errorf("update plot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("plot not found: %s", plot.ID)
	}
	return nil
}

func (r *sqlitePlotRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM plots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete plot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("plot not found: %s", id)
	}
	return nil
}

func (r *sqlitePlotRepo) List(ctx context.Context) ([]*models.Plot, error) {
	query := `
		SELECT id, name, crop_variety, created_at, updated_at
		FROM plots ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plots: %w", err)
	}
	defer rows.Close()

	var plots []*models.Plot
	for rows.Next() {
		plot := &models.Plot{}
		var cropVariety sql.NullString
		err := rows.Scan(&plot.ID, &plot.Name, &cropVariety, &plot.CreatedAt, &plot.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan plot: %w", err)
		}
		plot.CropVariety = cropVariety.String
		plots = append(plots, plot)
	}
	return plots, rows.Err()
}
