// Package auth verifies bearer tokens from the directory identity
// provider and layers role and department authorization on top.
//
// # Verification
//
// A [Verifier] takes a compact token through a fixed sequence: decode,
// issuer check, mode selection, mode-specific validation, claims
// normalization and an email domain check. The issuer check is the
// tenant isolation boundary; nothing else about a token from another
// tenant is inspected.
//
// Two validation modes exist. [ModeStrict] resolves the signing key
// through a [KeyResolver], verifies the signature and checks exp and
// nbf. [ModeRelaxed] applies only to the legacy issuer, whose signatures
// cannot be verified reliably. It skips the signature but still demands
// an unexpired token, a plausible iat and a matching tenant segment.
//
// # Gates
//
// [Authenticate] turns verifier outcomes into 401, 403 or 500 responses
// and attaches the [Principal] to the request context. [RequireRole]
// and [RequireDepartmentAccess] then consult a [UserStore] and enrich
// the principal with its persisted role and department. The gRPC
// interceptors apply the same verifier to RPCs.
//
// Principals are immutable values. Enrichment returns a new value that
// the gate stores in a derived context.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
)

// TokenVerifier verifies a raw bearer token. [*Verifier] is the
// production implementation; gates accept the interface so handlers can
// be tested without keys.
//
// Implementations must be safe for concurrent use.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// Principal is the normalized identity derived from a verified token.
// The zero value means "no principal".
type Principal struct {
	subjectID   string
	email       string
	displayName string
	objectID    string
	role        Role
	department  string
}

// NewPrincipal returns a principal without role or department. An empty
// objectID falls back to subjectID.
func NewPrincipal(subjectID, email, displayName, objectID string) Principal {
	if objectID == "" {
		objectID = subjectID
	}
	return Principal{
		subjectID:   subjectID,
		email:       email,
		displayName: displayName,
		objectID:    objectID,
	}
}

func (p Principal) SubjectID() string   { return p.subjectID }
func (p Principal) Email() string       { return p.email }
func (p Principal) DisplayName() string { return p.displayName }
func (p Principal) ObjectID() string    { return p.objectID }

// Role returns the persisted role, or "" before a role gate has run.
func (p Principal) Role() Role { return p.role }

// Department returns the persisted department, or "" if none.
func (p Principal) Department() string { return p.department }

// IsZero reports whether p is the zero Principal.
func (p Principal) IsZero() bool { return p == Principal{} }

// WithRole returns a copy of p carrying role. p is unchanged.
func (p Principal) WithRole(role Role) Principal {
	p.role = role
	return p
}

// WithDepartment returns a copy of p carrying department. p is unchanged.
func (p Principal) WithDepartment(department string) Principal {
	p.department = department
	return p
}

type principalJSON struct {
	SubjectID   string `json:"subjectId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	ObjectID    string `json:"objectId"`
	Role        Role   `json:"role,omitempty"`
	Department  string `json:"department,omitempty"`
}

// MarshalJSON renders the principal for "who am I" endpoints.
func (p Principal) MarshalJSON() ([]byte, error) {
	return json.Marshal(principalJSON{
		SubjectID:   p.subjectID,
		Email:       p.email,
		DisplayName: p.displayName,
		ObjectID:    p.objectID,
		Role:        p.role,
		Department:  p.department,
	})
}

// LogValue omits the email and display name so principals can be logged
// without personal data.
func (p Principal) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("object_id", p.objectID)}
	if p.role != "" {
		attrs = append(attrs, slog.String("role", string(p.role)))
	}
	if p.department != "" {
		attrs = append(attrs, slog.String("department", p.department))
	}
	return slog.GroupValue(attrs...)
}
