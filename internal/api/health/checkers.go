package health

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteChecker checks metadata database connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// Pinger interface for backends that support ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClickHouseChecker checks reading storage connectivity.
type ClickHouseChecker struct {
	pinger Pinger
}

// NewClickHouseChecker creates a new ClickHouse health checker.
func NewClickHouseChecker(p Pinger) *ClickHouseChecker {
	return &ClickHouseChecker{pinger: p}
}

// Name returns the checker name.
func (c *ClickHouseChecker) Name() string {
	return "clickhouse"
}

// Check verifies the reading store is accessible.
func (c *ClickHouseChecker) Check(ctx context.Context) error {
	if c.pinger == nil {
		return fmt.Errorf("reading storage not initialized")
	}
	return c.pinger.Ping(ctx)
}

// BrokerChecker reports whether the embedded MQTT broker is serving.
type BrokerChecker struct {
	serving func() bool
}

// NewBrokerChecker creates a broker health checker from a liveness probe.
func NewBrokerChecker(serving func() bool) *BrokerChecker {
	return &BrokerChecker{serving: serving}
}

// Name returns the checker name.
func (c *BrokerChecker) Name() string {
	return "mqtt"
}

// Check verifies the broker is up.
func (c *BrokerChecker) Check(ctx context.Context) error {
	if c.serving == nil || !c.serving() {
		return fmt.Errorf("broker not serving")
	}
	return nil
}
