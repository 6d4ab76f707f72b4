package postgres

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
	"unicode/utf8"
)

// maxSQLTruncateLen bounds statements recorded on spans.
const maxSQLTruncateLen = 100

// Defaults applied by [DefaultConfig] and [Config.Validate].
const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultDatabase = "compliance"
	DefaultUser     = "compliance"

	DefaultMaxConns          int32 = 10
	DefaultMinConns          int32 = 1
	DefaultMaxConnLifetime         = time.Hour
	DefaultMaxConnIdleTime         = 30 * time.Minute
	DefaultHealthCheckPeriod       = time.Minute
	DefaultConnectTimeout          = 10 * time.Second

	// DefaultHealthTimeout bounds [Client.Health] when the caller's
	// context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// SSLMode is the libpq sslmode parameter.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"
	SSLModeAllow      SSLMode = "allow"
	SSLModePrefer     SSLMode = "prefer"
	SSLModeRequire    SSLMode = "require"
	SSLModeVerifyCA   SSLMode = "verify-ca"
	SSLModeVerifyFull SSLMode = "verify-full"
)

// Valid reports whether m is a recognized mode.
func (m SSLMode) Valid() bool {
	switch m {
	case SSLModeDisable, SSLModeAllow, SSLModePrefer,
		SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	default:
		return false
	}
}

// Secret holds a password. Its string and text forms are redacted so the
// value never reaches logs or serialized configuration.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// Value returns the underlying secret.
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config is the connection configuration for the user database. When URI
// is set it takes precedence over the structured fields.
type Config struct {
	URI         string  `json:"uri,omitempty" yaml:"uri,omitempty" env:"POSTGRES_URI"`
	Host        string  `json:"host,omitempty" yaml:"host,omitempty" env:"POSTGRES_HOST"`
	Port        int     `json:"port,omitempty" yaml:"port,omitempty" env:"POSTGRES_PORT"`
	Database    string  `json:"database" yaml:"database" env:"POSTGRES_DATABASE"`
	User        string  `json:"user" yaml:"user" env:"POSTGRES_USER"`
	Password    Secret  `json:"-" yaml:"-" env:"POSTGRES_PASSWORD"`
	SSLMode     SSLMode `json:"ssl_mode,omitempty" yaml:"ssl_mode,omitempty" env:"POSTGRES_SSLMODE"`
	SSLRootCert string  `json:"ssl_root_cert,omitempty" yaml:"ssl_root_cert,omitempty" env:"POSTGRES_SSL_ROOT_CERT"`

	MaxConns          int32         `json:"max_conns,omitempty" yaml:"max_conns,omitempty" env:"POSTGRES_MAX_CONNS"`
	MinConns          int32         `json:"min_conns,omitempty" yaml:"min_conns,omitempty" env:"POSTGRES_MIN_CONNS"`
	MaxConnLifetime   time.Duration `json:"max_conn_lifetime,omitempty" yaml:"max_conn_lifetime,omitempty" env:"POSTGRES_MAX_CONN_LIFETIME"`
	MaxConnIdleTime   time.Duration `json:"max_conn_idle_time,omitempty" yaml:"max_conn_idle_time,omitempty" env:"POSTGRES_MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod time.Duration `json:"health_check_period,omitempty" yaml:"health_check_period,omitempty" env:"POSTGRES_HEALTH_CHECK_PERIOD"`
	ConnectTimeout    time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty" env:"POSTGRES_CONNECT_TIMEOUT"`
}

// DefaultConfig returns a Config for a local database with sslmode=require.
func DefaultConfig() *Config {
	return &Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		Database:          DefaultDatabase,
		User:              DefaultUser,
		SSLMode:           SSLModeRequire,
		MaxConns:          DefaultMaxConns,
		MinConns:          DefaultMinConns,
		MaxConnLifetime:   DefaultMaxConnLifetime,
		MaxConnIdleTime:   DefaultMaxConnIdleTime,
		HealthCheckPeriod: DefaultHealthCheckPeriod,
		ConnectTimeout:    DefaultConnectTimeout,
	}
}

// Validate fills zero pool settings with defaults and checks the rest.
// With a URI only the URI itself is checked.
func (c *Config) Validate() error {
	c.applyPoolDefaults()

	if err := c.validatePool(); err != nil {
		return err
	}

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("postgres: config URI is invalid: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("postgres: config URI scheme must be postgres or postgresql, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("postgres: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return errors.New("postgres: config database must not be empty")
	}
	if c.User == "" {
		return errors.New("postgres: config user must not be empty")
	}
	if c.SSLMode == "" {
		c.SSLMode = SSLModeRequire
	}
	if !c.SSLMode.Valid() {
		return fmt.Errorf("postgres: config ssl_mode %q is not valid", c.SSLMode)
	}
	if c.SSLRootCert != "" {
		if _, err := os.Stat(c.SSLRootCert); err != nil {
			return fmt.Errorf("postgres: config ssl_root_cert %q is not accessible: %w", c.SSLRootCert, err)
		}
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("postgres: config max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns)
	}
	return nil
}

func (c *Config) validatePool() error {
	switch {
	case c.MaxConns < 1:
		return fmt.Errorf("postgres: config max_conns must be >= 1, got %d", c.MaxConns)
	case c.MinConns < 0:
		return fmt.Errorf("postgres: config min_conns must be >= 0, got %d", c.MinConns)
	case c.MaxConnLifetime < 0:
		return errors.New("postgres: config max_conn_lifetime must not be negative")
	case c.MaxConnIdleTime < 0:
		return errors.New("postgres: config max_conn_idle_time must not be negative")
	case c.HealthCheckPeriod < 0:
		return errors.New("postgres: config health_check_period must not be negative")
	case c.ConnectTimeout < 0:
		return errors.New("postgres: config connect_timeout must not be negative")
	}
	return nil
}

func (c *Config) applyPoolDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = DefaultMaxConnLifetime
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = DefaultMaxConnIdleTime
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// ConnectionString returns the URI, or a postgres:// URL built from the
// structured fields. The result carries the password in clear text.
func (c *Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", string(c.SSLMode))
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// tlsConfig returns nil unless a CA bundle is configured and TLS is on.
func (c *Config) tlsConfig() (*tls.Config, error) {
	if c.SSLRootCert == "" || c.SSLMode == SSLModeDisable {
		return nil, nil
	}

	pem, err := os.ReadFile(c.SSLRootCert)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to read CA certificate %q: %w", c.SSLRootCert, err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("postgres: failed to parse CA certificate from %q", c.SSLRootCert)
	}

	tlsCfg := &tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}
	switch c.SSLMode {
	case SSLModeVerifyFull:
		tlsCfg.ServerName = c.Host
	case SSLModeVerifyCA:
		// Chain only; the hostname is not checked.
		tlsCfg.InsecureSkipVerify = true
		tlsCfg.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return errors.New("postgres: server did not present a certificate")
			}
			opts := x509.VerifyOptions{Roots: roots, Intermediates: x509.NewCertPool()}
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		}
	default:
		tlsCfg.InsecureSkipVerify = true
	}
	return tlsCfg, nil
}

// truncateSQL cuts sql to maxSQLTruncateLen runes.
func truncateSQL(sql string) string {
	if utf8.RuneCountInString(sql) <= maxSQLTruncateLen {
		return sql
	}
	return string([]rune(sql)[:maxSQLTruncateLen]) + "..."
}
