package userstore

import (
	"context"
	"strings"
	"sync"

	"github.com/StricklySoft/compliance-auth/pkg/auth"
	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// Memory is an in-process store for tests and local runs. It is safe for
// concurrent use.
type Memory struct {
	mu    sync.RWMutex
	users map[string]auth.UserRecord
}

var _ auth.UserStore = (*Memory)(nil)

// NewMemory returns a store seeded with users, keyed by email.
func NewMemory(users map[string]auth.UserRecord) *Memory {
	m := &Memory{users: make(map[string]auth.UserRecord, len(users))}
	for email, rec := range users {
		m.users[normalize(email)] = rec
	}
	return m
}

// Put adds or replaces the record for email.
func (m *Memory) Put(email string, rec auth.UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[normalize(email)] = rec
}

// Delete removes email.
func (m *Memory) Delete(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, normalize(email))
}

// LookupUser implements [auth.UserStore].
func (m *Memory) LookupUser(ctx context.Context, email string) (auth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return auth.UserRecord{}, sserr.Wrap(err, sserr.CodeTimeout, "userstore: lookup canceled")
	}
	m.mu.RLock()
	rec, ok := m.users[normalize(email)]
	m.mu.RUnlock()
	if !ok {
		return auth.UserRecord{}, sserr.New(sserr.CodeUserNotFound, "User not found")
	}
	return rec, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
