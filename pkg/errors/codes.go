package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, TOKEN, AUTHZ) and XXX is a three-digit numeric code.
//
// Codes are stable once assigned. Clients may key on them; operators may
// search logs for them.
type Code string

// Error code categories and the HTTP status each maps to:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Missing credentials (401 Unauthorized)
//	TOKEN_xxx   - Bearer token rejected by the verifier (403 Forbidden)
//	AUTHZ_xxx   - Authenticated principal not permitted (403 Forbidden)
//	INT_xxx     - Internal faults (500 Internal Server Error)
//	UNAVAIL_xxx - Dependency unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Operation exceeded its deadline (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeValidationRange indicates a value is outside acceptable range.
	CodeValidationRange Code = "VAL_004"

	// Authentication errors (AUTH_xxx) - HTTP 401

	// CodeNoToken indicates the request carried no bearer token.
	CodeNoToken Code = "AUTH_001"

	// CodeUnauthenticated indicates an authorization gate ran without an
	// authenticated principal attached to the request.
	CodeUnauthenticated Code = "AUTH_002"

	// Token rejections (TOKEN_xxx) - HTTP 403

	// CodeMalformedToken indicates the token is not a decodable JWT.
	CodeMalformedToken Code = "TOKEN_001"

	// CodeIssuerMismatch indicates the issuer is not one of the accepted
	// issuers for the configured tenant.
	CodeIssuerMismatch Code = "TOKEN_002"

	// CodeTenantMismatch indicates the tenant segment of a relaxed-mode
	// issuer differs from the configured tenant.
	CodeTenantMismatch Code = "TOKEN_003"

	// CodeTokenExpired indicates the token's exp claim is in the past.
	CodeTokenExpired Code = "TOKEN_004"

	// CodeTokenNotYetValid indicates the token was issued (or becomes
	// valid) too far in the future.
	CodeTokenNotYetValid Code = "TOKEN_005"

	// CodeKeyResolutionExhausted indicates no candidate key endpoint
	// produced a key for the token's kid.
	CodeKeyResolutionExhausted Code = "TOKEN_006"

	// CodeInvalidSignature indicates the signature did not verify.
	CodeInvalidSignature Code = "TOKEN_007"

	// CodeInvalidEmailFormat indicates the normalized email has no domain.
	CodeInvalidEmailFormat Code = "TOKEN_008"

	// CodeDomainNotAllowed indicates the email domain is not the
	// configured allowed domain.
	CodeDomainNotAllowed Code = "TOKEN_009"

	// Authorization errors (AUTHZ_xxx) - HTTP 403

	// CodeUserNotFound indicates the principal has no persisted user record.
	CodeUserNotFound Code = "AUTHZ_001"

	// CodeInsufficientRole indicates the persisted role is not allowed.
	CodeInsufficientRole Code = "AUTHZ_002"

	// CodeDepartmentRequired indicates a department-scoped role has no
	// department assigned.
	CodeDepartmentRequired Code = "AUTHZ_003"

	// Internal errors (INT_xxx) - HTTP 500

	// CodeInternal indicates an unexpected internal fault.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// CodeInternalCache indicates the key cache could not be read or written.
	CodeInternalCache Code = "INT_004"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503

	// CodeUnavailableDependency indicates a dependent service is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_001"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// reasons maps each code to the short name clients see in the "details"
// field of an error body.
var reasons = map[Code]string{
	CodeValidation:             "Validation",
	CodeValidationRequired:     "ValidationRequired",
	CodeValidationFormat:       "ValidationFormat",
	CodeValidationRange:        "ValidationRange",
	CodeNoToken:                "NoToken",
	CodeUnauthenticated:        "Unauthenticated",
	CodeMalformedToken:         "MalformedToken",
	CodeIssuerMismatch:         "IssuerMismatch",
	CodeTenantMismatch:         "TenantMismatch",
	CodeTokenExpired:           "TokenExpired",
	CodeTokenNotYetValid:       "TokenNotYetValid",
	CodeKeyResolutionExhausted: "KeyResolutionExhausted",
	CodeInvalidSignature:       "InvalidSignature",
	CodeInvalidEmailFormat:     "InvalidEmailFormat",
	CodeDomainNotAllowed:       "DomainNotAllowed",
	CodeUserNotFound:           "UserNotFound",
	CodeInsufficientRole:       "InsufficientRole",
	CodeDepartmentRequired:     "DepartmentRequired",
	CodeInternal:               "InternalFault",
	CodeInternalDatabase:       "InternalFault",
	CodeInternalConfiguration:  "InternalFault",
	CodeInternalCache:          "InternalFault",
	CodeUnavailableDependency:  "InternalFault",
	CodeTimeout:                "InternalFault",
	CodeTimeoutDatabase:        "InternalFault",
}

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "TOKEN").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}

// Reason returns the taxonomy name of the code (e.g., "DomainNotAllowed").
// Unknown codes report "InternalFault".
func (c Code) Reason() string {
	if r, ok := reasons[c]; ok {
		return r
	}
	return "InternalFault"
}
