package errors

import "slices"

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err's classification is code.
//
//	if errors.HasCode(err, errors.CodeUserNotFound) {
//	    // 403 "User not found"
//	}
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

func hasCategory(err error, categories ...string) bool {
	code := GetCode(err)
	return code != "" && slices.Contains(categories, code.Category())
}

// IsValidation reports a VAL_xxx error.
func IsValidation(err error) bool { return hasCategory(err, "VAL") }

// IsAuthentication reports missing credentials (AUTH_xxx).
func IsAuthentication(err error) bool { return hasCategory(err, "AUTH") }

// IsTokenRejection reports a verifier rejection (TOKEN_xxx).
func IsTokenRejection(err error) bool { return hasCategory(err, "TOKEN") }

// IsAuthorization reports a gate denial (AUTHZ_xxx).
func IsAuthorization(err error) bool { return hasCategory(err, "AUTHZ") }

func IsInternal(err error) bool    { return hasCategory(err, "INT") }
func IsUnavailable(err error) bool { return hasCategory(err, "UNAVAIL") }
func IsTimeout(err error) bool     { return hasCategory(err, "TIMEOUT") }

// IsRetryable reports whether the operation that produced err may succeed
// if repeated later. Only timeouts and unavailable dependencies qualify; a
// rejected token must be re-issued, never retried.
func IsRetryable(err error) bool {
	return hasCategory(err, "TIMEOUT", "UNAVAIL")
}

// IsClientError reports an error answered with a 4xx status.
func IsClientError(err error) bool {
	return hasCategory(err, "VAL", "AUTH", "TOKEN", "AUTHZ")
}

// IsServerError reports an error answered with a 5xx status. Unclassified
// errors are not counted; pass them through [FromError] first.
func IsServerError(err error) bool {
	return hasCategory(err, "INT", "UNAVAIL", "TIMEOUT")
}
