// Package handlers defines the error codes returned in ErrorResponse.Code.
// Codes are lowercase snake_case; clients branch on them rather than on
// messages.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Webhook-specific:
	ErrCodeInvalidJSON      = "invalid_json"
	ErrCodeMissingContextID = "missing_context_id"
	ErrCodeMissingRole      = "missing_role"
	ErrCodeStoreFailed      = "store_failed"
)
