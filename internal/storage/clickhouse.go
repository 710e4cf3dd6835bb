package storage

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/refina-analytics/internal/config"
)

// ClickHouseDB wraps the ClickHouse connection
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB connects to the ClickHouse mirror and checks it answers
func NewClickHouseDB(cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(clickHouseOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout(cfg.DialTimeout))
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// clickHouseOptions maps the mirror configuration onto driver options.
// Mirror tables are ReplacingMergeTree, so block deduplication is turned off:
// a re-sent batch must land again to replace the older row versions.
func clickHouseOptions(cfg *config.ClickHouseConfig) *clickhouse.Options {
	var addrs []string
	for _, host := range strings.Split(cfg.Host, ",") {
		if host = strings.TrimSpace(host); host != "" {
			addrs = append(addrs, net.JoinHostPort(host, cfg.Port))
		}
	}

	settings := clickhouse.Settings{
		"insert_deduplicate": 0,
	}
	if seconds := int(cfg.MaxExecutionTime / time.Second); seconds > 0 {
		settings["max_execution_time"] = seconds
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	strategy := clickhouse.ConnOpenInOrder
	if len(addrs) > 1 {
		strategy = clickhouse.ConnOpenRoundRobin
	}

	return &clickhouse.Options{
		Addr: addrs,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings:         settings,
		DialTimeout:      pingTimeout(cfg.DialTimeout),
		MaxOpenConns:     maxOpen,
		MaxIdleConns:     maxIdle,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: strategy,
	}
}

func pingTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Ping checks if the database is reachable
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Exec executes a query without returning rows
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	return db.conn.Exec(ctx, query, args...)
}
