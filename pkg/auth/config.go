package auth

import (
	"net"
	"net/url"
	"strings"
	"time"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// Config holds the process-wide settings of the verifier, the key
// resolver and the authorization gates. Load it with the config package;
// every field has an env tag and, where sensible, a default.
type Config struct {
	// TenantID is the directory tenant whose tokens are accepted. It is
	// the primary isolation boundary: issuers for any other tenant are
	// rejected before anything else is inspected.
	TenantID string `json:"tenant_id" yaml:"tenant_id" env:"AZURE_TENANT_ID" required:"true"`

	// ClientID is this application's registration id. Only used to log
	// tokens minted for a different audience.
	ClientID string `json:"client_id" yaml:"client_id" env:"AZURE_CLIENT_ID" required:"true"`

	// AllowedDomain is the only email domain admitted, compared
	// case-insensitively.
	AllowedDomain string `json:"allowed_domain" yaml:"allowed_domain" env:"ALLOWED_EMAIL_DOMAIN" required:"true"`

	OIDCBaseURL      string `json:"oidc_base_url" yaml:"oidc_base_url" env:"AUTH_OIDC_BASE_URL" envDefault:"https://login.microsoftonline.com"`
	LegacyBaseURL    string `json:"legacy_base_url" yaml:"legacy_base_url" env:"AUTH_LEGACY_BASE_URL" envDefault:"https://sts.windows.net"`
	LegacyHostMarker string `json:"legacy_host_marker" yaml:"legacy_host_marker" env:"AUTH_LEGACY_HOST_MARKER" envDefault:"sts.windows.net"`

	// KeyProviderURL is substituted for {provider} in key endpoint templates.
	KeyProviderURL string `json:"key_provider_url" yaml:"key_provider_url" env:"AUTH_KEY_PROVIDER_URL" envDefault:"https://login.microsoftonline.com"`

	KeyCacheTTL     time.Duration `json:"key_cache_ttl" yaml:"key_cache_ttl" env:"AUTH_KEY_CACHE_TTL" envDefault:"24h"`
	KeyCacheSize    int           `json:"key_cache_size" yaml:"key_cache_size" env:"AUTH_KEY_CACHE_SIZE" envDefault:"64"`
	KeyFetchTimeout time.Duration `json:"key_fetch_timeout" yaml:"key_fetch_timeout" env:"AUTH_KEY_FETCH_TIMEOUT" envDefault:"30s"`

	// MaxIssuedAtSkew bounds how far in the future a relaxed-mode token's
	// iat may lie.
	MaxIssuedAtSkew time.Duration `json:"max_iat_skew" yaml:"max_iat_skew" env:"AUTH_MAX_IAT_SKEW" envDefault:"300s"`

	// ClockSkew is the leeway granted to exp and nbf in strict mode.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"AUTH_CLOCK_SKEW" envDefault:"0s"`

	UserLookupTimeout time.Duration `json:"user_lookup_timeout" yaml:"user_lookup_timeout" env:"AUTH_USER_LOOKUP_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns a Config with every default applied. TenantID,
// ClientID and AllowedDomain are left empty.
func DefaultConfig() Config {
	return Config{
		OIDCBaseURL:       "https://login.microsoftonline.com",
		LegacyBaseURL:     "https://sts.windows.net",
		LegacyHostMarker:  "sts.windows.net",
		KeyProviderURL:    "https://login.microsoftonline.com",
		KeyCacheTTL:       24 * time.Hour,
		KeyCacheSize:      64,
		KeyFetchTimeout:   30 * time.Second,
		MaxIssuedAtSkew:   300 * time.Second,
		UserLookupTimeout: 30 * time.Second,
	}
}

// Validate reports the first invalid field. Base URLs must be absolute
// https URLs; plain http is tolerated only for loopback hosts.
func (c *Config) Validate() error {
	switch {
	case c.TenantID == "":
		return sserr.New(sserr.CodeValidationRequired, "auth: tenant id must not be empty")
	case strings.Contains(c.TenantID, "/"):
		return sserr.New(sserr.CodeValidationFormat, "auth: tenant id must not contain '/'")
	case c.ClientID == "":
		return sserr.New(sserr.CodeValidationRequired, "auth: client id must not be empty")
	case c.AllowedDomain == "":
		return sserr.New(sserr.CodeValidationRequired, "auth: allowed email domain must not be empty")
	case strings.Contains(c.AllowedDomain, "@"):
		return sserr.New(sserr.CodeValidationFormat, "auth: allowed email domain must not contain '@'")
	}

	for _, u := range []struct{ name, raw string }{
		{"OIDC base URL", c.OIDCBaseURL},
		{"legacy base URL", c.LegacyBaseURL},
		{"key provider URL", c.KeyProviderURL},
	} {
		if err := validateBaseURL(u.name, u.raw); err != nil {
			return err
		}
	}

	switch {
	case c.LegacyHostMarker == "":
		return sserr.New(sserr.CodeValidationRequired, "auth: legacy host marker must not be empty")
	case c.KeyCacheTTL <= 0:
		return sserr.New(sserr.CodeValidationRange, "auth: key cache TTL must be positive")
	case c.KeyCacheSize <= 0:
		return sserr.New(sserr.CodeValidationRange, "auth: key cache size must be greater than zero")
	case c.KeyFetchTimeout <= 0:
		return sserr.New(sserr.CodeValidationRange, "auth: key fetch timeout must be positive")
	case c.UserLookupTimeout <= 0:
		return sserr.New(sserr.CodeValidationRange, "auth: user lookup timeout must be positive")
	case c.MaxIssuedAtSkew < 0:
		return sserr.New(sserr.CodeValidationRange, "auth: max issued-at skew must be non-negative")
	case c.ClockSkew < 0:
		return sserr.New(sserr.CodeValidationRange, "auth: clock skew must be non-negative")
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return sserr.Newf(sserr.CodeValidationFormat, "auth: %s %q is not an absolute URL", name, raw)
	}
	if u.Scheme == "https" {
		return nil
	}
	if u.Scheme == "http" && isLoopback(u.Hostname()) {
		return nil
	}
	return sserr.Newf(sserr.CodeValidationFormat, "auth: %s %q must use https", name, raw)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
