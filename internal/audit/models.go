package audit

import (
	"time"

	id "anonid/pkg/domain"
	"anonid/pkg/platform/privacy"
)

// Action names the audited operation.
type Action string

const (
	ActionHashCreate Action = "HASH_CREATE"
	ActionHashFailed Action = "HASH_FAILED"
)

// Status is the authorization outcome recorded with an entry.
type Status string

const (
	StatusAuthorized Status = "AUTHORIZED"
	StatusDenied     Status = "DENIED"
)

// Entry is an immutable record of one identity resolution attempt.
//
// Identifier and failure detail fields use privacy types that can only be
// produced by privacy.Mask and privacy.Sanitize, so an entry cannot carry a
// raw vehicle identifier.
type Entry struct {
	Sequence        uint64            `json:"sequence"`
	TraceID         string            `json:"trace_id"`
	Timestamp       time.Time         `json:"timestamp"`
	Accessor        id.UserID         `json:"accessor"`
	TenantID        id.TenantID       `json:"tenant_id"`
	Action          Action            `json:"action"`
	MaskedReference privacy.MaskedRef `json:"masked_reference"`
	TimeContext     string            `json:"time_context"`
	Status          Status            `json:"status"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	Detail          privacy.SafeError `json:"detail,omitzero"`
	PrevHash        string            `json:"prev_hash"`
	Hash            string            `json:"hash"`
}
