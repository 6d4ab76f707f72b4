package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// newMock returns a mock pool whose expectations are checked at cleanup.
func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return mock
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "compliance", databaseName(&Config{Database: "compliance"}))
	assert.Equal(t, "users", databaseName(&Config{Database: "compliance", URI: "postgres://u@db:5432/users?sslmode=disable"}))
	assert.Equal(t, "compliance", databaseName(&Config{Database: "compliance", URI: "://bad"}))
}

func TestNewFromPool(t *testing.T) {
	mock := newMock(t)

	client := NewFromPool(mock, &Config{Database: "compliance"})
	assert.Equal(t, "compliance", client.databaseName)
	assert.NotNil(t, client.tracer)

	client = NewFromPool(mock, nil)
	require.NotNil(t, client.config)
	assert.Empty(t, client.databaseName)
}

func TestClient_Query(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT email, role FROM users").
		WillReturnRows(pgxmock.NewRows([]string{"email", "role"}).
			AddRow("a@example.com", "ADMIN").
			AddRow("b@example.com", "VIEWER"))

	rows, err := NewFromPool(mock, nil).Query(context.Background(), "SELECT email, role FROM users")
	require.NoError(t, err)
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email, role string
		require.NoError(t, rows.Scan(&email, &role))
		emails = append(emails, email)
	}
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, emails)
}

func TestClient_Query_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code sserr.Code
	}{
		{"generic", errors.New("relation does not exist"), sserr.CodeInternalDatabase},
		{"pg error", &pgconn.PgError{Code: "42P01", Message: "relation missing"}, sserr.CodeInternalDatabase},
		{"deadline", context.DeadlineExceeded, sserr.CodeTimeoutDatabase},
		{"canceled", context.Canceled, sserr.CodeTimeoutDatabase},
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}, sserr.CodeTimeoutDatabase},
		{"connection failure", &pgconn.PgError{Code: "08006", Message: "connection failure"}, sserr.CodeUnavailableDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectQuery("SELECT").WillReturnError(tt.err)

			_, err := NewFromPool(mock, nil).Query(context.Background(), "SELECT 1")
			require.Error(t, err)
			assert.True(t, sserr.HasCode(err, tt.code), "got %v", err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClient_QueryRow(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT role").
		WithArgs("a@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("MANAGER"))
	mock.ExpectQuery("SELECT role").
		WithArgs("missing@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"role"}))

	client := NewFromPool(mock, nil)

	var role string
	require.NoError(t, client.QueryRow(context.Background(), "SELECT role FROM users WHERE email = $1", "a@example.com").Scan(&role))
	assert.Equal(t, "MANAGER", role)

	err := client.QueryRow(context.Background(), "SELECT role FROM users WHERE email = $1", "missing@example.com").Scan(&role)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestClient_Exec(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("UPDATE users").
		WithArgs("Finance", "a@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users").
		WillReturnError(errors.New("constraint violation"))

	client := NewFromPool(mock, nil)
	tag, err := client.Exec(context.Background(), "UPDATE users SET department = $1 WHERE email = $2", "Finance", "a@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, tag.RowsAffected())

	_, err = client.Exec(context.Background(), "UPDATE users SET department = NULL")
	assert.True(t, sserr.HasCode(err, sserr.CodeInternalDatabase))
}

func TestClient_Health(t *testing.T) {
	mock := newMock(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	client := NewFromPool(mock, nil)
	require.NoError(t, client.Health(context.Background()))

	err := client.Health(context.Background())
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeUnavailableDependency))
	assert.True(t, sserr.IsRetryable(err))
}

func TestClient_Health_RespectsCallerDeadline(t *testing.T) {
	mock := newMock(t)
	mock.ExpectPing()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, NewFromPool(mock, nil).Health(ctx))
}

func TestClient_Close(t *testing.T) {
	mock := newMock(t)
	mock.ExpectClose()
	NewFromPool(mock, nil).Close()
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil, "x"))

	err := classify(errors.New("boom"), "postgres: query failed")
	assert.Equal(t, sserr.CodeInternalDatabase, err.Code)
	assert.Equal(t, "postgres: query failed", err.Message)
}
