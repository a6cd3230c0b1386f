// Package common defines sentinel errors shared by the storage, store,
// numbering and import layers. Callers should use errors.Is to match these
// values; lower layers wrap them with context via fmt.Errorf("...: %w").
package common

import "errors"

var (
	// Lookup errors.
	ErrorNotFound = errors.New("not found")

	// Backend selection and I/O errors.
	ErrBackendUnconfigured = errors.New("storage backend not configured")
	ErrBackendUnavailable  = errors.New("storage backend unavailable")

	// A stored entry that is not a valid JSON document.
	ErrMalformedDocument = errors.New("malformed document")

	// Input that fails shape validation (import candidates, create requests, ids).
	ErrValidation = errors.New("validation error")

	// Settings could not be verified against the remote backend.
	ErrConnectivityCheck = errors.New("connectivity check failed")

	// Number reservation errors.
	ErrAlreadyExists          = errors.New("already exists")
	ErrNumberTaken            = errors.New("document number already taken")
	ErrReservationUnsupported = errors.New("number reservation not supported by backend")
)
