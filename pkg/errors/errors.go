// Package errors defines the error taxonomy shared by the token verifier,
// the authorization gates, and the storage clients behind them.
//
// # Taxonomy
//
// Every failure is an [*Error] carrying a stable [Code]. The code category
// decides the HTTP status:
//
//   - AUTH: no credentials presented (401)
//   - TOKEN: the bearer token was rejected (403)
//   - AUTHZ: the principal is authenticated but not permitted (403)
//   - INT, UNAVAIL, TIMEOUT: internal faults (5xx), logged in full and
//     returned to clients as an opaque message
//
// # Usage
//
// Reject a token:
//
//	return errors.New(errors.CodeIssuerMismatch, "Token issuer not accepted")
//
// Wrap a storage failure:
//
//	return errors.Wrap(err, errors.CodeInternalDatabase, "user lookup failed")
//
// Branch on the outcome in a gate:
//
//	switch {
//	case errors.IsInternal(err):
//	    // log, return 500
//	case errors.IsClientError(err):
//	    // return err.HTTPStatus() with Message and Code.Reason()
//	}
package errors
