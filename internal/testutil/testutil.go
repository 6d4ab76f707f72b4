// Package testutil holds assertions shared by the compliance-auth tests:
// error-code checks against the platform taxonomy, decoding of gate
// rejection bodies, and secret redaction checks.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// describe renders err for failure messages: code, reason and message
// for a classified error, the Go type otherwise.
func describe(err error) string {
	if e, ok := sserr.AsError(err); ok {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Code.Reason(), e.Message)
	}
	return fmt.Sprintf("unclassified %T: %v", err, err)
}

// RequireErrorCode stops the test unless err is classified as code.
//
//	_, err := verifier.Verify(ctx, token)
//	testutil.RequireErrorCode(t, err, sserr.CodeIssuerMismatch)
func RequireErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	require.Equal(t, code, sserr.GetCode(err), "want %s (%s), got %s", code, code.Reason(), describe(err))
}

// AssertErrorCode is [RequireErrorCode] without stopping the test.
func AssertErrorCode(t testing.TB, err error, code sserr.Code, msgAndArgs ...any) bool {
	t.Helper()
	return assert.Error(t, err, msgAndArgs...) &&
		assert.Equal(t, code, sserr.GetCode(err), "want %s, got %s", code, describe(err))
}

// ErrorBody is what the HTTP gates write on rejection.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DecodeErrorBody reads a rejection body from rr, checking it is JSON.
func DecodeErrorBody(t testing.TB, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	return body
}

func marshal(t testing.TB, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

// AssertJSONContains checks the JSON encoding of v contains want.
func AssertJSONContains(t testing.TB, v any, want string) {
	t.Helper()
	assert.Contains(t, marshal(t, v), want)
}

// AssertJSONNotContains checks the JSON encoding of v leaves out secret,
// e.g. a password behind a redacting type.
func AssertJSONNotContains(t testing.TB, v any, secret string) {
	t.Helper()
	assert.NotContains(t, marshal(t, v), secret)
}
