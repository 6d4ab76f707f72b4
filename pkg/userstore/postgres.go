// Package userstore implements [auth.UserStore], the lookup of a user's
// persisted role and department by email.
package userstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/StricklySoft/compliance-auth/pkg/auth"
	"github.com/StricklySoft/compliance-auth/pkg/clients/postgres"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

const lookupSQL = `SELECT role, department FROM users WHERE lower(email) = $1`

// Querier is the subset of [*postgres.Client] the store uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*postgres.Client)(nil)

// Postgres reads users from the users table. Emails are compared
// lower-cased; callers pass the normalized address.
type Postgres struct {
	db Querier
}

var _ auth.UserStore = (*Postgres)(nil)

// NewPostgres returns a store reading through db.
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

// LookupUser returns the record for email. A missing row yields
// [sserr.CodeUserNotFound]; a NULL department becomes "".
func (s *Postgres) LookupUser(ctx context.Context, email string) (auth.UserRecord, error) {
	var (
		role string
		dept *string
	)
	err := s.db.QueryRow(ctx, lookupSQL, email).Scan(&role, &dept)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return auth.UserRecord{}, sserr.New(sserr.CodeUserNotFound, "User not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return auth.UserRecord{}, sserr.Wrap(err, sserr.CodeTimeoutDatabase, "userstore: lookup timed out")
	case err != nil:
		return auth.UserRecord{}, sserr.Wrap(err, sserr.CodeInternalDatabase, "userstore: lookup failed")
	}

	rec := auth.UserRecord{Role: auth.Role(role)}
	if dept != nil {
		rec.Department = *dept
	}
	return rec, nil
}
