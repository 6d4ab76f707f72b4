package fixtures

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Signer is an RSA key pair published under Kid.
type Signer struct {
	Kid string
	Key *rsa.PrivateKey
}

// NewSigner generates a 2048-bit RSA signer.
func NewSigner(t testing.TB, kid string) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key pair")
	return &Signer{Kid: kid, Key: key}
}

// Public returns the signer's public key.
func (s *Signer) Public() *rsa.PublicKey {
	return &s.Key.PublicKey
}

// Sign returns an RS256 token over claims with the signer's kid.
func (s *Signer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	return s.SignWith(t, jwt.SigningMethodRS256, claims)
}

// SignWith signs with an RSA-family method other than RS256.
func (s *Signer) SignWith(t testing.TB, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = s.Kid
	signed, err := token.SignedString(s.Key)
	require.NoError(t, err, "failed to sign token")
	return signed
}

// JWK returns the public half as a JSON Web Key.
func (s *Signer) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       s.Public(),
		KeyID:     s.Kid,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}
}

// KeySet marshals a JWKS document publishing every signer.
func KeySet(t testing.TB, signers ...*Signer) []byte {
	t.Helper()
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(signers))}
	for _, s := range signers {
		set.Keys = append(set.Keys, s.JWK())
	}
	doc, err := json.Marshal(set)
	require.NoError(t, err, "failed to marshal JWKS")
	return doc
}

// ModernClaims returns a valid v2.0 payload for the default user,
// issued at now and expiring an hour later.
func ModernClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   ModernIssuer,
		"aud":   ClientID,
		"sub":   Subject,
		"oid":   ObjectID,
		"email": Email,
		"name":  DisplayName,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

// LegacyClaims returns a valid v1.0 payload for the default user. Like
// real v1.0 tokens it carries upn and unique_name instead of email.
func LegacyClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":         LegacyIssuer,
		"aud":         "00000003-0000-0000-c000-000000000000",
		"sub":         Subject,
		"oid":         ObjectID,
		"upn":         Email,
		"unique_name": Email,
		"given_name":  "Jane",
		"family_name": "Doe",
		"iat":         now.Unix(),
		"nbf":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
	}
}

// RawToken assembles a compact token from arbitrary header and payload
// values without signing it. Use it to build structurally odd tokens.
func RawToken(t testing.TB, header, payload any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	return enc(header) + "." + enc(payload) + "." + base64.RawURLEncoding.EncodeToString([]byte("signature"))
}
