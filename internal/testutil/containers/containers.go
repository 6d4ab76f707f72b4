//go:build integration

// Package containers starts throwaway PostgreSQL and Redis instances with
// testcontainers-go for integration tests. Everything here is behind the
// "integration" build tag so unit test builds never link the Docker client.
//
//	pg := containers.StartPostgres(t)
//	cfg := postgres.Config{URI: pg.ConnString}
//
// Containers are terminated through t.Cleanup.
package containers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/StricklySoft/compliance-auth/internal/testutil/fixtures"
)

const (
	// DefaultPostgresImage is the PostgreSQL image used by [StartPostgres].
	DefaultPostgresImage = "docker.io/postgres:16-alpine"

	// DefaultRedisImage is the Redis image used by [StartRedis].
	DefaultRedisImage = "docker.io/redis:7-alpine"
)

// UsersSchema creates the table read by the PostgreSQL user store.
const UsersSchema = `CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	department TEXT
)`

// PostgresResult is a running PostgreSQL container.
type PostgresResult struct {
	Container *tcpostgres.PostgresContainer

	// ConnString carries sslmode=disable; the container has no TLS.
	ConnString string
}

// StartPostgres starts a PostgreSQL container with the fixture database
// credentials and registers its termination with t.Cleanup.
func StartPostgres(t *testing.T) *PostgresResult {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		DefaultPostgresImage,
		tcpostgres.WithDatabase(fixtures.TestDBName),
		tcpostgres.WithUsername(fixtures.TestDBUser),
		tcpostgres.WithPassword(fixtures.TestDBPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "containers: failed to start postgres")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("containers: failed to terminate postgres: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "containers: failed to get postgres connection string")

	return &PostgresResult{Container: container, ConnString: connStr}
}

// RedisResult is a running Redis container.
type RedisResult struct {
	Container *tcredis.RedisContainer

	// ConnString is a redis:// URL.
	ConnString string
}

// StartRedis starts an unauthenticated Redis container and registers its
// termination with t.Cleanup.
func StartRedis(t *testing.T) *RedisResult {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, DefaultRedisImage)
	require.NoError(t, err, "containers: failed to start redis")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("containers: failed to terminate redis: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err, "containers: failed to get redis connection string")

	return &RedisResult{Container: container, ConnString: connStr}
}
