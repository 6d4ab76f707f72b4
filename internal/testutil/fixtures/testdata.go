// Package fixtures provides shared test data and factories for the
// compliance-auth test suite: tenant constants, RSA signers, token
// minting and JWKS servers.
package fixtures

// Directory values shared by verifier and gate tests.
const (
	// TenantID is the configured tenant.
	TenantID = "3f2a9c1e-7b44-4d2a-9e61-0c5d8b7a1f20"

	// OtherTenantID is a foreign tenant whose tokens must be rejected.
	OtherTenantID = "9d0e4b7c-1a2f-4e3d-8c5b-6a7f8e9d0c1b"

	// ClientID is this application's registration id.
	ClientID = "6c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f"

	// AllowedDomain is the only email domain admitted.
	AllowedDomain = "example.com"

	// OIDCBaseURL and LegacyBaseURL are the production issuer bases.
	OIDCBaseURL   = "https://login.microsoftonline.com"
	LegacyBaseURL = "https://sts.windows.net"
)

// Identity values of the default test user.
const (
	Subject     = "AAAAAAAAAAAAAAAAAAAAAIkzqFVrSaSaFHy782bbtaQ"
	ObjectID    = "00000000-0000-0000-66f3-3332eca7ea81"
	Email       = "jane.doe@example.com"
	DisplayName = "Jane Doe"
)

// Issuer strings for the configured tenant.
const (
	ModernIssuer = OIDCBaseURL + "/" + TenantID + "/v2.0"
	LegacyIssuer = LegacyBaseURL + "/" + TenantID + "/"
)

// Key endpoint paths relative to the key provider URL.
const (
	PathTenantV1 = "/" + TenantID + "/discovery/keys"
	PathTenantV2 = "/" + TenantID + "/discovery/v2.0/keys"
	PathCommonV2 = "/common/discovery/v2.0/keys"
)

// Database values used in postgres client and user store tests.
const (
	TestDBHost = "localhost"
	TestDBPort = 5432
	TestDBName = "compliance"
	TestDBUser = "testuser"

	// TestDBPassword is a deliberately weak value suitable only for unit tests.
	TestDBPassword = "testpass"
)
