//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/compliance-auth/internal/testutil/containers"
	"github.com/StricklySoft/compliance-auth/pkg/clients/postgres"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

func setupClient(t *testing.T) *postgres.Client {
	t.Helper()
	pg := containers.StartPostgres(t)

	client, err := postgres.NewClient(context.Background(), postgres.Config{
		URI:      pg.ConnString,
		MaxConns: 5,
		MinConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	_, err = client.Exec(context.Background(), containers.UsersSchema)
	require.NoError(t, err)
	return client
}

func TestIntegration_Health(t *testing.T) {
	client := setupClient(t)
	require.NoError(t, client.Health(context.Background()))
}

func TestIntegration_ExecAndQuery(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	for _, u := range [][3]any{
		{"a@example.com", "ADMIN", nil},
		{"c@example.com", "CONTRIBUTOR", "Finance"},
	} {
		tag, err := client.Exec(ctx, "INSERT INTO users (email, role, department) VALUES ($1, $2, $3)", u[0], u[1], u[2])
		require.NoError(t, err)
		assert.EqualValues(t, 1, tag.RowsAffected())
	}

	rows, err := client.Query(ctx, "SELECT email FROM users ORDER BY email")
	require.NoError(t, err)
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "c@example.com"}, emails)

	var dept *string
	require.NoError(t, client.QueryRow(ctx, "SELECT department FROM users WHERE email = $1", "a@example.com").Scan(&dept))
	assert.Nil(t, dept)

	err = client.QueryRow(ctx, "SELECT department FROM users WHERE email = $1", "nobody@example.com").Scan(&dept)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestIntegration_QueryTimeout(t *testing.T) {
	client := setupClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Query(ctx, "SELECT pg_sleep(5)")
	require.Error(t, err)
	assert.True(t, sserr.IsTimeout(err), "got %v", err)
}

func TestIntegration_NewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := postgres.NewClient(ctx, postgres.Config{
		URI:            "postgres://nobody:x@127.0.0.1:1/none?sslmode=disable",
		ConnectTimeout: time.Second,
	})
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeUnavailableDependency))
}
