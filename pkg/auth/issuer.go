package auth

import (
	"regexp"
	"strings"
)

// ValidationMode selects how a token is validated. It is derived once
// from the issuer and never changes for the token.
type ValidationMode int

const (
	// ModeStrict verifies the signature against a resolved key and
	// checks registered time claims.
	ModeStrict ValidationMode = iota

	// ModeRelaxed skips the signature check. It applies only to tokens
	// from the legacy issuer, whose signatures cannot be verified
	// reliably, and compensates with expiry, issued-at and tenant checks.
	ModeRelaxed
)

// String returns "strict" or "relaxed".
func (m ValidationMode) String() string {
	if m == ModeRelaxed {
		return "relaxed"
	}
	return "strict"
}

// tenantPattern captures the first path segment after the host.
var tenantPattern = regexp.MustCompile(`^https?://[^/]+/([^/]+)(?:/|$)`)

// ExtractTenant returns the tenant segment of an issuer URL, the first
// path segment after the host. It reports false when the issuer has no
// such segment.
//
//	ExtractTenant("https://sts.windows.net/3f1c.../") // "3f1c...", true
//	ExtractTenant("https://sts.windows.net")          // "", false
func ExtractTenant(issuer string) (string, bool) {
	m := tenantPattern.FindStringSubmatch(issuer)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// issuerPolicy decides which issuers are accepted for the configured
// tenant and which validation mode each one gets.
type issuerPolicy struct {
	oidcBase   string
	legacyBase string
	tenant     string
	marker     string
}

func newIssuerPolicy(cfg Config) issuerPolicy {
	return issuerPolicy{
		oidcBase:   strings.TrimRight(cfg.OIDCBaseURL, "/"),
		legacyBase: strings.TrimRight(cfg.LegacyBaseURL, "/"),
		tenant:     cfg.TenantID,
		marker:     cfg.LegacyHostMarker,
	}
}

// accepts reports whether iss belongs to the configured tenant under
// either the OIDC or the legacy base.
func (p issuerPolicy) accepts(iss string) bool {
	if iss == "" || p.tenant == "" {
		return false
	}
	oidcTenant := p.oidcBase + "/" + p.tenant + "/"
	legacyTenant := p.legacyBase + "/" + p.tenant + "/"

	switch iss {
	case oidcTenant + "v2.0", legacyTenant, oidcTenant:
		return true
	}
	return strings.HasPrefix(iss, oidcTenant) || strings.HasPrefix(iss, legacyTenant)
}

func (p issuerPolicy) mode(iss string) ValidationMode {
	if p.marker != "" && strings.Contains(iss, p.marker) {
		return ModeRelaxed
	}
	return ModeStrict
}
