// Package services holds the webhook ingestion logic and the onboarding
// operations for webhook sources. This file centralizes service-level error
// values so handlers can map them to HTTP results with errors.Is/As.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownToken covers absent, unknown and inactive tokens alike.
	ErrUnknownToken = errors.New("unknown webhook token")

	// ErrMalformedPayload is returned when the body is not a JSON object.
	ErrMalformedPayload = errors.New("malformed JSON payload")

	// ErrMissingContextID is returned when neither contextId nor context_id
	// carries a value.
	ErrMissingContextID = errors.New("contextId is required")

	// ErrMissingRole is returned for message events without a role.
	ErrMissingRole = errors.New("role is required for message events")

	// ErrOrganizationNotFound is returned by onboarding operations that
	// reference a tenant that does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrSourceNotFound is returned when deactivating an unknown token.
	ErrSourceNotFound = errors.New("webhook source not found")
)

// StoreError wraps a data-store failure with the step that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
