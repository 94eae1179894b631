package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUpstream is used when the tax authority is unreachable or failing
	ErrCodeUpstream = "ERR_UPSTREAM"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeFolioExhausted is used when no authorized folio ranges remain
	ErrCodeFolioExhausted = "ERR_FOLIO_EXHAUSTED"
	// ErrCodeCertificateExpired is used when the signing certificate is no longer valid
	ErrCodeCertificateExpired = "ERR_CERTIFICATE_EXPIRED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,
	ErrCodeUpstream: http.StatusBadGateway,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:       http.StatusUnprocessableEntity,
	ErrCodeFolioExhausted:     http.StatusUnprocessableEntity,
	ErrCodeCertificateExpired: http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the standardized API codes
var DomainErrorCodeMapping = map[string]string{
	// Resource lookups
	"NOT_FOUND":         ErrCodeNotFound,
	"CAF_BLOCK_MISSING": ErrCodeNotFound,

	// Concurrency and duplicates
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"CAF_RANGE_OVERLAP":    ErrCodeAlreadyExists,

	// Folio lifecycle violations -> business rule
	"FOLIO_EXHAUSTED":        ErrCodeFolioExhausted,
	"NO_ACTIVE_BLOCK":        ErrCodeFolioExhausted,
	"BLOCK_EXPIRED":          ErrCodeBusinessRule,
	"CAF_EXPIRED":            ErrCodeBusinessRule,
	"FOLIO_ALREADY_ASSIGNED": ErrCodeBusinessRule,
	"ALREADY_ALLOCATED":      ErrCodeBusinessRule,
	"ALREADY_DEACTIVATED":    ErrCodeBusinessRule,
	"REVERSAL_PENDING":       ErrCodeBusinessRule,
	"INVALID_REVERSAL":       ErrCodeBusinessRule,
	"INVALID_STATE":          ErrCodeInvalidState,

	// Signing material
	"CERTIFICATE_EXPIRED": ErrCodeCertificateExpired,
	"INVALID_STAMP":       ErrCodeBusinessRule,
	"INVALID_SIGNATURE":   ErrCodeBusinessRule,

	// Malformed authorization files and input -> bad request
	"CAF_MALFORMED":         ErrCodeInvalidInput,
	"CAF_INVALID_DATE":      ErrCodeInvalidInput,
	"CAF_INVALID_ISSUER":    ErrCodeInvalidInput,
	"CAF_INVALID_TYPE":      ErrCodeInvalidInput,
	"INVALID_AUTHORIZATION": ErrCodeInvalidInput,
	"INVALID_RANGE":         ErrCodeInvalidInput,
	"INVALID_DOCUMENT_TYPE": ErrCodeInvalidInput,
	"INVALID_FOLIO":         ErrCodeInvalidInput,
	"INVALID_TRACK_ID":      ErrCodeInvalidInput,
	"INVALID_AMOUNT":        ErrCodeInvalidInput,
	"INVALID_QUANTITY":      ErrCodeInvalidInput,
	"INVALID_TAX_ID":        ErrCodeInvalidInput,
	"TAX_ID_CHECKSUM":       ErrCodeInvalidInput,
	"INVALID_REFERENCE":     ErrCodeInvalidInput,
	"EMPTY_DOCUMENT":        ErrCodeInvalidInput,
	"VALIDATION_FAILED":     ErrCodeValidation,

	// Generic passthroughs
	"ALREADY_EXISTS": ErrCodeAlreadyExists,
	"INVALID_INPUT":  ErrCodeInvalidInput,
	"UNAUTHORIZED":   ErrCodeUnauthorized,
	"FORBIDDEN":      ErrCodeForbidden,
	"BAD_REQUEST":    ErrCodeBadRequest,
	"INTERNAL_ERROR": ErrCodeInternal,
	"UPSTREAM_ERROR": ErrCodeUpstream,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
