package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/agrisense/agrisense/internal/models"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	// Addresses are the ClickHouse server addresses (host:port).
	Addresses []string

	// Database is the ClickHouse database name.
	Database string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration

	// Compression enables LZ4 compression.
	Compression bool

	// RetentionDays is the TTL in days for reading retention.
	RetentionDays int
}

// ClickHouseStorage implements ReadingStorage for ClickHouse.
type ClickHouseStorage struct {
	config   *ClickHouseConfig
	db       *sql.DB
	readings *clickhouseReadingRepo
}

// NewClickHouseStorage creates a new ClickHouse storage.
func NewClickHouseStorage(config *ClickHouseConfig) *ClickHouseStorage {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = 90
	}

	return &ClickHouseStorage{config: config}
}

// Open initializes the ClickHouse connection.
func (s *ClickHouseStorage) Open() error {
	opts := &clickhouse.Options{
		Addr: s.config.Addresses,
		Auth: clickhouse.Auth{
			Database: s.config.Database,
			Username: s.config.Username,
			Password: s.config.Password,
		},
		DialTimeout:  s.config.DialTimeout,
		MaxOpenConns: s.config.MaxOpenConns,
		MaxIdleConns: s.config.MaxIdleConns,
	}

	if s.config.Compression {
		opts.Compression = &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		}
	}

	db := clickhouse.OpenDB(opts)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	s.db = db
	s.readings = &clickhouseReadingRepo{db: db}
	return nil
}

// Close closes the database connection.
func (s *ClickHouseStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the readings table if it doesn't exist.
func (s *ClickHouseStorage) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS sensor_readings (
			id UUID DEFAULT generateUUIDv4(),
			plot_id String,
			sensor_type LowCardinality(String),
			value Float64,
			timestamp DateTime64(3, 'UTC'),
			source String DEFAULT '',
			_date Date DEFAULT toDate(timestamp)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(_date)
		ORDER BY (plot_id, sensor_type, timestamp, id)
		TTL _date + INTERVAL %d DAY DELETE
		SETTINGS index_granularity = 8192
	`, s.config.RetentionDays)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create sensor_readings table: %w", err)
	}

	indexes := []string{
		"ALTER TABLE sensor_readings ADD INDEX IF NOT EXISTS idx_source source TYPE bloom_filter(0.01) GRANULARITY 4",
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			// Index support varies across ClickHouse versions.
			fmt.Printf("warning: failed to create index: %v\n", err)
		}
	}

	return nil
}

// Ping checks the connection health.
func (s *ClickHouseStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Readings returns the reading repository.
func (s *ClickHouseStorage) Readings() ReadingRepository {
	return s.readings
}

type clickhouseReadingRepo struct {
	db *sql.DB
}

// InsertBatch inserts multiple readings using a single transaction.
func (r *clickhouseReadingRepo) InsertBatch(ctx context.Context, records []*ReadingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sensor_readings (id, plot_id, sensor_type, value, timestamp, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := stmt.ExecContext(ctx,
			id,
			rec.PlotID,
			string(rec.Type),
			rec.Value,
			rec.Timestamp,
			rec.Source,
		)
		if err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Query retrieves readings matching the filter.
func (r *clickhouseReadingRepo) Query(ctx context.Context, filter *ReadingFilter) ([]*ReadingRecord, error) {
	query, args := r.buildQuery(filter, false)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var records []*ReadingRecord
	for rows.Next() {
		rec := &ReadingRecord{}
		var sensorType string
		err := rows.Scan(&rec.ID, &rec.PlotID, &sensorType, &rec.Value, &rec.Timestamp, &rec.Source)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec.Type = models.SensorType(sensorType)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return records, nil
}

// Count returns the count of readings matching the filter.
func (r *clickhouseReadingRepo) Count(ctx context.Context, filter *ReadingFilter) (int64, error) {
	query, args := r.buildQuery(filter, true)

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// Latest returns the most recent reading per sensor type for a plot.
func (r *clickhouseReadingRepo) Latest(ctx context.Context, plotID string) ([]*ReadingRecord, error) {
	query := `
		SELECT id, plot_id, sensor_type, value, timestamp, source
		FROM sensor_readings
		WHERE plot_id = ?
		ORDER BY timestamp DESC
		LIMIT 1 BY sensor_type
	`
	rows, err := r.db.QueryContext(ctx, query, plotID)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var records []*ReadingRecord
	for rows.Next() {
		rec := &ReadingRecord{}
		var sensorType string
		err := rows.Scan(&rec.ID, &rec.PlotID, &sensorType, &rec.Value, &rec.Timestamp, &rec.Source)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec.Type = models.SensorType(sensorType)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteBefore removes readings older than the specified time.
func (r *clickhouseReadingRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT count() FROM sensor_readings WHERE timestamp < ?", before).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	// ALTER TABLE DELETE runs asynchronously in ClickHouse.
	_, err = r.db.ExecContext(ctx, "ALTER TABLE sensor_readings DELETE WHERE timestamp < ?", before)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	return count, nil
}

func (r *clickhouseReadingRepo) buildQuery(filter *ReadingFilter, countOnly bool) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	if countOnly {
		sb.WriteString("SELECT count() FROM sensor_readings")
	} else {
		sb.WriteString(`
			SELECT id, plot_id, sensor_type, value, timestamp, source
			FROM sensor_readings
		`)
	}

	var conditions []string

	if filter.PlotID != "" {
		conditions = append(conditions, "plot_id = ?")
		args = append(args, filter.PlotID)
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, fmt.Sprintf("sensor_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Start)
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.End)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	if countOnly {
		return sb.String(), args
	}

	order := "ASC"
	if filter.Descending {
		order = "DESC"
	}
	sb.WriteString(" ORDER BY timestamp " + order)

	limit := filter.Limit
	if limit == 0 {
		limit = 1000
	}
	sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	return sb.String(), args
}
