//go:build integration

package userstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/compliance-auth/internal/testutil/containers"
	"github.com/StricklySoft/compliance-auth/pkg/auth"
	"github.com/StricklySoft/compliance-auth/pkg/clients/postgres"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
	"github.com/StricklySoft/compliance-auth/pkg/userstore"
)

func TestIntegration_PostgresStore(t *testing.T) {
	ctx := context.Background()
	pg := containers.StartPostgres(t)

	client, err := postgres.NewClient(ctx, postgres.Config{URI: pg.ConnString})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	_, err = client.Exec(ctx, containers.UsersSchema)
	require.NoError(t, err)
	_, err = client.Exec(ctx, `INSERT INTO users (email, role, department) VALUES
		('Jane.Doe@Example.com', 'CONTRIBUTOR', 'Finance'),
		('admin@example.com', 'ADMIN', NULL)`)
	require.NoError(t, err)

	store := userstore.NewPostgres(client)

	rec, err := store.LookupUser(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.UserRecord{Role: auth.RoleContributor, Department: "Finance"}, rec)

	rec, err = store.LookupUser(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Empty(t, rec.Department)

	_, err = store.LookupUser(ctx, "ghost@example.com")
	assert.True(t, sserr.HasCode(err, sserr.CodeUserNotFound))
}
