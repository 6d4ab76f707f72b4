package auth

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// identityClaims is the subset of a token payload the normalizer reads.
// Different issuance paths populate different subsets; every field is
// optional.
type identityClaims struct {
	Subject           string   `mapstructure:"sub"`
	ObjectID          string   `mapstructure:"oid"`
	Email             string   `mapstructure:"email"`
	PreferredUsername string   `mapstructure:"preferred_username"`
	UPN               string   `mapstructure:"upn"`
	UniqueName        string   `mapstructure:"unique_name"`
	Emails            []string `mapstructure:"emails"`
	Name              string   `mapstructure:"name"`
	GivenName         string   `mapstructure:"given_name"`
	FamilyName        string   `mapstructure:"family_name"`
}

// NormalizedClaims is the stable identity extracted from a payload.
type NormalizedClaims struct {
	Subject     string
	ObjectID    string
	Email       string
	DisplayName string
}

// NormalizeClaims extracts a stable identity from heterogeneous claim
// shapes. It never fails because a field is absent; it fails only when a
// present field has a shape that cannot be read as text.
//
// Email is the first non-empty of email, preferred_username, upn,
// unique_name and emails[0]. Display name is the first non-empty of
// name, given_name, family_name and the local part of the email.
func NormalizeClaims(payload map[string]any) (NormalizedClaims, error) {
	var c identityClaims
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		// Lets a single string stand in for a one-element emails array.
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err != nil {
		return NormalizedClaims{}, err
	}
	if err := dec.Decode(payload); err != nil {
		return NormalizedClaims{}, err
	}

	var first string
	if len(c.Emails) > 0 {
		first = c.Emails[0]
	}
	email := firstNonEmpty(c.Email, c.PreferredUsername, c.UPN, c.UniqueName, first)

	// A combined "given family" name would only apply when both parts are
	// present, and given_name alone already wins in that case.
	local, _, _ := strings.Cut(email, "@")
	name := firstNonEmpty(c.Name, c.GivenName, c.FamilyName, local)

	return NormalizedClaims{
		Subject:     strings.TrimSpace(c.Subject),
		ObjectID:    strings.TrimSpace(c.ObjectID),
		Email:       email,
		DisplayName: name,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
