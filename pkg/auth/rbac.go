package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// Role is a persisted application role. Values are upper case; use
// [ParseRole] on anything read from storage or configuration.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleManager     Role = "MANAGER"
	RoleContributor Role = "CONTRIBUTOR"
	RoleViewer      Role = "VIEWER"
)

// ParseRole normalizes s to upper case and reports whether it names a
// known role. The normalized value is returned either way.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleManager, RoleContributor, RoleViewer:
		return r, true
	}
	return r, false
}

// IsDepartmentScoped reports whether principals holding r only see data
// of their own department and therefore need one assigned.
func (r Role) IsDepartmentScoped() bool {
	return r == RoleContributor
}

// UserRecord is the persisted authorization state of a user.
type UserRecord struct {
	Role       Role
	Department string
}

// UserStore looks up persisted users by normalized email. A missing user
// is reported as an error with code [sserr.CodeUserNotFound]; any other
// error is treated as an internal fault.
type UserStore interface {
	LookupUser(ctx context.Context, email string) (UserRecord, error)
}

// Authorizer builds the role and department gates over one UserStore.
type Authorizer struct {
	store UserStore
	opts  gateOptions
}

// NewAuthorizer returns an Authorizer backed by store.
func NewAuthorizer(store UserStore, opts ...GateOption) *Authorizer {
	return &Authorizer{store: store, opts: newGateOptions(opts)}
}

// lookup loads the persisted record of the principal in ctx under the
// configured timeout.
func (a *Authorizer) lookup(ctx context.Context) (Principal, UserRecord, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, UserRecord{}, sserr.New(sserr.CodeUnauthenticated, "Authentication required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.lookupTimeout)
	defer cancel()

	rec, err := a.store.LookupUser(ctx, strings.ToLower(p.Email()))
	if err != nil {
		if sserr.HasCode(err, sserr.CodeUserNotFound) {
			return p, UserRecord{}, sserr.Wrap(err, sserr.CodeUserNotFound, "User not found")
		}
		return p, UserRecord{}, err
	}
	rec.Role, _ = ParseRole(string(rec.Role))
	return p, rec, nil
}

// RequireRole returns middleware admitting only principals whose
// persisted role is one of roles. It must run behind [Authenticate].
//
//   - no principal: 401
//   - unknown user: 403 {"error":"User not found"}
//   - role not allowed: 403 {"error":"Insufficient permissions"}
//   - store failure: 500 {"error":"Authorization error"}
//
// On success the principal is replaced with one carrying the persisted
// role and department.
func (a *Authorizer) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make([]Role, 0, len(roles))
	for _, r := range roles {
		role, _ := ParseRole(string(r))
		allowed = append(allowed, role)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, rec, err := a.lookup(r.Context())
			if err == nil && !slices.Contains(allowed, rec.Role) {
				err = sserr.New(sserr.CodeInsufficientRole, "Insufficient permissions")
			}
			a.opts.metrics.observeDecision(gateRole, err)
			if err != nil {
				writeRejection(w, r, a.opts, err, "Authorization error")
				return
			}

			p = p.WithRole(rec.Role).WithDepartment(rec.Department)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequireDepartmentAccess returns middleware that refuses principals
// whose persisted role is department-scoped but who have no department
// assigned. Other roles pass unchanged. The principal is replaced with
// one carrying the persisted role and department so handlers can filter
// by it.
func (a *Authorizer) RequireDepartmentAccess() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, rec, err := a.lookup(r.Context())
			if err == nil && rec.Role.IsDepartmentScoped() && strings.TrimSpace(rec.Department) == "" {
				err = sserr.New(sserr.CodeDepartmentRequired, "Contributors must have a department assigned")
			}
			a.opts.metrics.observeDecision(gateDepartment, err)
			if err != nil {
				writeRejection(w, r, a.opts, err, "Authorization error")
				return
			}

			p = p.WithRole(rec.Role).WithDepartment(rec.Department)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}
