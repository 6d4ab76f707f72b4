package errors

import (
	"net/http"
	"testing"
)

func TestCode_Category(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeValidation, "VAL"},
		{CodeNoToken, "AUTH"},
		{CodeIssuerMismatch, "TOKEN"},
		{CodeDomainNotAllowed, "TOKEN"},
		{CodeInsufficientRole, "AUTHZ"},
		{CodeInternalCache, "INT"},
		{CodeUnavailableDependency, "UNAVAIL"},
		{CodeTimeoutDatabase, "TIMEOUT"},
		{Code("NOUNDERSCORE"), "NOUNDERSCORE"},
		{Code(""), ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Category(); got != tt.want {
				t.Errorf("Category() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestCode_Reason pins the client-visible reason names. They appear in the
// "details" field of HTTP error bodies, so renaming one is a breaking change.
func TestCode_Reason(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeNoToken, "NoToken"},
		{CodeMalformedToken, "MalformedToken"},
		{CodeIssuerMismatch, "IssuerMismatch"},
		{CodeTenantMismatch, "TenantMismatch"},
		{CodeTokenExpired, "TokenExpired"},
		{CodeTokenNotYetValid, "TokenNotYetValid"},
		{CodeKeyResolutionExhausted, "KeyResolutionExhausted"},
		{CodeInvalidSignature, "InvalidSignature"},
		{CodeInvalidEmailFormat, "InvalidEmailFormat"},
		{CodeDomainNotAllowed, "DomainNotAllowed"},
		{CodeUserNotFound, "UserNotFound"},
		{CodeInsufficientRole, "InsufficientRole"},
		{CodeDepartmentRequired, "DepartmentRequired"},
		{CodeInternal, "InternalFault"},
		{CodeInternalCache, "InternalFault"},
		{Code("XYZ_999"), "InternalFault"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Reason(); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestCode_TaxonomyStatus checks every taxonomy entry lands on the status
// the gates promise: 401 for missing credentials, 403 for every rejection
// and denial, 500 for internal faults.
func TestCode_TaxonomyStatus(t *testing.T) {
	want := map[Code]int{
		CodeNoToken:                http.StatusUnauthorized,
		CodeUnauthenticated:        http.StatusUnauthorized,
		CodeMalformedToken:         http.StatusForbidden,
		CodeIssuerMismatch:         http.StatusForbidden,
		CodeTenantMismatch:         http.StatusForbidden,
		CodeTokenExpired:           http.StatusForbidden,
		CodeTokenNotYetValid:       http.StatusForbidden,
		CodeKeyResolutionExhausted: http.StatusForbidden,
		CodeInvalidSignature:       http.StatusForbidden,
		CodeInvalidEmailFormat:     http.StatusForbidden,
		CodeDomainNotAllowed:       http.StatusForbidden,
		CodeUserNotFound:           http.StatusForbidden,
		CodeInsufficientRole:       http.StatusForbidden,
		CodeDepartmentRequired:     http.StatusForbidden,
		CodeInternal:               http.StatusInternalServerError,
	}

	for code, status := range want {
		if got := New(code, "x").HTTPStatus(); got != status {
			t.Errorf("%s: HTTPStatus() = %d, want %d", code, got, status)
		}
	}
}

func TestCode_Uniqueness(t *testing.T) {
	seen := make(map[Code]bool)
	for code := range reasons {
		if seen[code] {
			t.Errorf("duplicate code %q", code)
		}
		seen[code] = true
	}
	if len(seen) != 25 {
		t.Errorf("reason table has %d codes, want 25", len(seen))
	}
}
