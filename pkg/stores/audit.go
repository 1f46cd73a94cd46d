package stores

import (
	"context"
	"encoding/json"

	"github.com/machshop/enforcement/pkg/audit"
	"github.com/machshop/enforcement/pkg/enforcement"
)

// AppendAuditEntry inserts one immutable audit record. There is no update
// or delete path for audit rows.
func (s *SQLiteStore) AppendAuditEntry(ctx context.Context, entry *audit.Entry) error {
	bypasses, err := json.Marshal(entry.Bypasses)
	if err != nil {
		return enforcement.NewPermanentError("failed to encode bypasses", err).
			WithCode(enforcement.ErrCodeValidation)
	}

	query := `
		INSERT INTO audit_entries (id, work_order_id, operation_id, action, enforcement_mode, bypasses, user_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.WorkOrderID,
		entry.OperationID,
		entry.Action,
		entry.EnforcementMode,
		string(bypasses),
		entry.UserID,
		entry.Timestamp,
	)
	if err != nil {
		return enforcement.NewTransientError("failed to append audit entry", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(entry.ID)
	}

	return nil
}

// ListAuditEntries returns every audit entry for a work order in
// chronological order. Ties on timestamp fall back to insertion order.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, workOrderID string) ([]*audit.Entry, error) {
	query := `
		SELECT id, work_order_id, operation_id, action, enforcement_mode, bypasses, user_id, timestamp
		FROM audit_entries
		WHERE work_order_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		return nil, enforcement.NewTransientError("failed to list audit entries", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(workOrderID)
	}
	defer rows.Close()

	entries := []*audit.Entry{}
	for rows.Next() {
		entry := &audit.Entry{}
		var bypasses string
		err := rows.Scan(
			&entry.ID,
			&entry.WorkOrderID,
			&entry.OperationID,
			&entry.Action,
			&entry.EnforcementMode,
			&bypasses,
			&entry.UserID,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, enforcement.NewTransientError("failed to scan audit entry", err)
		}
		if err := json.Unmarshal([]byte(bypasses), &entry.Bypasses); err != nil {
			return nil, enforcement.NewPermanentError("failed to decode bypasses", err).
				WithCode(enforcement.ErrCodeInternal)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, enforcement.NewTransientError("failed to iterate audit entries", err)
	}

	return entries, nil
}
