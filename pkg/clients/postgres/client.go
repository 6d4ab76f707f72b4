// Package postgres is the pooled PostgreSQL client behind the persisted
// user store.
//
// Every call is traced with OpenTelemetry and every failure is classified
// with a compliance-auth error code, so the authorization gates can tell
// a lost database (UNAVAIL_001) from a slow one (TIMEOUT_002) or a broken
// query (INT_002).
//
//	cfg := postgres.DefaultConfig()
//	cfg.Password = postgres.Secret(os.Getenv("POSTGRES_PASSWORD"))
//	db, err := postgres.NewClient(ctx, *cfg)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// Unit tests drive the client through a pgxmock pool and [NewFromPool].
package postgres

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

const tracerName = "github.com/StricklySoft/compliance-auth/pkg/clients/postgres"

// Pool is what the client needs from a connection pool.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Client wraps a [Pool]. It is safe for concurrent use.
type Client struct {
	pool         Pool
	config       *Config
	tracer       trace.Tracer
	databaseName string
}

// NewClient opens a pool for cfg and verifies the server answers a ping.
// An invalid cfg is VAL_001, a bad CA bundle INT_003, and an unreachable
// server UNAVAIL_001.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "postgres: invalid configuration")
	}
	poolCfg, err := buildPoolConfig(&cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "postgres: failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "postgres: database unreachable")
	}

	c := NewFromPool(pool, &cfg)
	c.databaseName = databaseName(&cfg)
	return c, nil
}

func buildPoolConfig(cfg *Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "postgres: unparseable connection string")
	}
	pc.MaxConns, pc.MinConns = cfg.MaxConns, cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod

	tlsCfg, err := cfg.tlsConfig()
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "postgres: TLS setup failed")
	}
	if tlsCfg != nil {
		pc.ConnConfig.TLSConfig = tlsCfg
	}
	return pc, nil
}

// databaseName prefers the path of a URI over the Database field, since
// the URI wins when both are set.
func databaseName(cfg *Config) string {
	if cfg.URI == "" {
		return cfg.Database
	}
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return cfg.Database
	}
	return strings.TrimPrefix(u.Path, "/")
}

// NewFromPool wraps an existing pool. A nil cfg is treated as empty.
func NewFromPool(pool Pool, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		pool:         pool,
		config:       cfg,
		tracer:       otel.Tracer(tracerName),
		databaseName: cfg.Database,
	}
}

// Query runs a row-returning statement. The caller closes the rows.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var rows pgx.Rows
	err := c.traced(ctx, "Query", sql, func(ctx context.Context) (err error) {
		rows, err = c.pool.Query(ctx, sql, args...)
		return err
	})
	if err != nil {
		return nil, classify(err, "postgres: query failed")
	}
	return rows, nil
}

// QueryRow runs a statement returning at most one row. Its error,
// including [pgx.ErrNoRows], comes from Scan and is left unclassified so
// callers can branch on it.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	var row pgx.Row
	_ = c.traced(ctx, "QueryRow", sql, func(ctx context.Context) error {
		row = c.pool.QueryRow(ctx, sql, args...)
		return nil
	})
	return row
}

func (c *Client) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := c.traced(ctx, "Exec", sql, func(ctx context.Context) (err error) {
		tag, err = c.pool.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return tag, classify(err, "postgres: exec failed")
	}
	return tag, nil
}

// Health pings the server. Without a caller deadline the ping is bounded
// by [DefaultHealthTimeout]. Any failure is UNAVAIL_001.
func (c *Client) Health(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}
	err := c.traced(ctx, "Health", "SELECT 1", c.pool.Ping)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "postgres: health check failed")
	}
	return nil
}

// Close releases the pool. Repeated calls are harmless.
func (c *Client) Close() {
	c.pool.Close()
}

// traced runs fn inside a client span named after op.
func (c *Client) traced(ctx context.Context, op, sql string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "postgres."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.name", c.databaseName),
			attribute.String("db.statement", truncateSQL(sql)),
		),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// classify maps a driver error onto the platform taxonomy:
//
//	context expiry, SQLSTATE 57014    TIMEOUT_002
//	SQLSTATE class 08 (connection)    UNAVAIL_001
//	anything else                     INT_002
func classify(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sserr.Wrap(err, sserr.CodeTimeoutDatabase, message)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "57014":
			return sserr.Wrap(err, sserr.CodeTimeoutDatabase, message)
		case strings.HasPrefix(pgErr.Code, "08"):
			return sserr.Wrap(err, sserr.CodeUnavailableDependency, message)
		}
	}
	return sserr.Wrap(err, sserr.CodeInternalDatabase, message)
}
