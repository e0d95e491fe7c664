package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors or decide to fall
// back to a secondary store.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrUnavailable: backing store cannot be reached
//   - ErrClosed: component has been shut down and rejects new work
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
