package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"

	"anonid/internal/audit"
	id "anonid/pkg/domain"
)

//go:embed schema.sql
var schema string

// Store archives audit entries in PostgreSQL. Rows are keyed by the entry
// hash so a replayed entry is written once.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the archive table and indexes if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Append implements audit.ArchiveStore.
func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, sequence, trace_id, occurred_at, accessor, tenant_id, action,
			masked_reference, time_context, status, execution_time_ms,
			detail_message, detail_stack, prev_hash, hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (hash) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		int64(e.Sequence),
		e.TraceID,
		e.Timestamp,
		e.Accessor.String(),
		e.TenantID.String(),
		string(e.Action),
		e.MaskedReference.String(),
		e.TimeContext,
		string(e.Status),
		e.ExecutionTimeMs,
		nullString(e.Detail.Message()),
		nullString(e.Detail.Stack()),
		e.PrevHash,
		e.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Record is the archived, already-masked form of an entry.
type Record struct {
	Sequence        uint64    `json:"sequence"`
	TraceID         string    `json:"trace_id"`
	Timestamp       time.Time `json:"timestamp"`
	Accessor        string    `json:"accessor"`
	TenantID        string    `json:"tenant_id"`
	Action          string    `json:"action"`
	MaskedReference string    `json:"masked_reference"`
	TimeContext     string    `json:"time_context"`
	Status          string    `json:"status"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	DetailMessage   string    `json:"detail_message,omitempty"`
	Hash            string    `json:"hash"`
}

// ListByTenant returns the newest archived records for a tenant.
func (s *Store) ListByTenant(ctx context.Context, tenantID id.TenantID, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT sequence, trace_id, occurred_at, accessor, tenant_id, action,
		       masked_reference, time_context, status, execution_time_ms,
		       detail_message, hash
		FROM audit_entries
		WHERE tenant_id = $1
		ORDER BY occurred_at DESC, sequence DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r      Record
			seq    int64
			detail sql.NullString
		)
		if err := rows.Scan(&seq, &r.TraceID, &r.Timestamp, &r.Accessor, &r.TenantID, &r.Action,
			&r.MaskedReference, &r.TimeContext, &r.Status, &r.ExecutionTimeMs, &detail, &r.Hash); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		r.Sequence = uint64(seq)
		r.DetailMessage = detail.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

// DeleteBefore removes records archived before cutoff and reports how many
// were removed.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
