package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"askme/internal/config"
	"askme/internal/metrics"
)

const pingTimeout = 5 * time.Second

// Querier is the statement surface services depend on. Statements use ?
// placeholders; implementations rebind them for the driver.
type Querier interface {
	Get(ctx context.Context, dest any, query string, args ...any) error
	Select(ctx context.Context, dest any, query string, args ...any) error
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	// Insert runs an INSERT ... RETURNING id and returns the new id.
	Insert(ctx context.Context, query string, args ...any) (int64, error)
}

// Opener dials a fresh pool. The gateway calls it when the current pool
// is found dead after a connection loss.
type Opener func() (*sqlx.DB, error)

// Gateway owns the process-wide database pool.
type Gateway struct {
	mu     sync.RWMutex
	conn   *sqlx.DB
	driver string
	open   Opener
	log    logrus.FieldLogger
}

// Open connects using cfg and returns a gateway able to reconnect with
// the same settings.
func Open(cfg config.DB, log logrus.FieldLogger) (*Gateway, error) {
	opener := func() (*sqlx.DB, error) { return connect(cfg) }
	conn, err := opener()
	if err != nil {
		return nil, err
	}
	return New(conn, cfg.Driver, opener, log), nil
}

// New wraps an existing pool. open may be nil, in which case a failed
// reconnect ping is only logged.
func New(conn *sqlx.DB, driverName string, open Opener, log logrus.FieldLogger) *Gateway {
	return &Gateway{conn: conn, driver: driverName, open: open, log: log}
}

func connect(cfg config.DB) (*sqlx.DB, error) {
	dsn := cfg.DSN()
	if cfg.Driver == config.DriverSQLite {
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	conn, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == config.DriverSQLite {
		// One writer; also keeps :memory: databases alive on a single conn.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(20)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return conn, nil
}

func (g *Gateway) Driver() string { return g.driver }

func (g *Gateway) current() *sqlx.DB {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conn
}

func (g *Gateway) Get(ctx context.Context, dest any, query string, args ...any) error {
	conn := g.current()
	err := conn.GetContext(ctx, dest, conn.Rebind(query), args...)
	return g.finish(conn, "get", err)
}

func (g *Gateway) Select(ctx context.Context, dest any, query string, args ...any) error {
	conn := g.current()
	err := conn.SelectContext(ctx, dest, conn.Rebind(query), args...)
	return g.finish(conn, "select", err)
}

func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn := g.current()
	res, err := conn.ExecContext(ctx, conn.Rebind(query), args...)
	return res, g.finish(conn, "exec", err)
}

func (g *Gateway) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	conn := g.current()
	var id int64
	err := conn.GetContext(ctx, &id, conn.Rebind(query), args...)
	return id, g.finish(conn, "insert", err)
}

func (g *Gateway) Ping(ctx context.Context) error {
	conn := g.current()
	return g.finish(conn, "ping", conn.PingContext(ctx))
}

func (g *Gateway) Close() error {
	return g.current().Close()
}

func (g *Gateway) finish(conn *sqlx.DB, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordStatement(op, nil)
		return err
	}
	metrics.RecordStatement(op, err)
	if err == nil {
		return nil
	}
	if IsConnectionLoss(err) {
		g.reconnect(conn, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// reconnect makes one attempt to restore failed. If another caller has
// already swapped the pool, there is nothing left to do.
func (g *Gateway) reconnect(failed *sqlx.DB, cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != failed {
		return
	}
	g.log.WithError(cause).Warn("database connection lost, reconnecting")

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := g.conn.PingContext(ctx); err == nil {
		metrics.RecordReconnect(true)
		g.log.Info("database connection restored")
		return
	}
	if g.open == nil {
		metrics.RecordReconnect(false)
		g.log.Error("database reconnect failed: no opener configured")
		return
	}

	conn, err := g.open()
	if err != nil {
		metrics.RecordReconnect(false)
		g.log.WithError(err).Error("database reconnect failed")
		return
	}
	old := g.conn
	g.conn = conn
	if err := old.Close(); err != nil {
		g.log.WithError(err).Debug("closing stale pool")
	}
	metrics.RecordReconnect(true)
	g.log.Info("database reconnected")
}

// IsConnectionLoss reports whether err means the link to the database is
// gone, as opposed to a bad statement or constraint failure.
func IsConnectionLoss(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
