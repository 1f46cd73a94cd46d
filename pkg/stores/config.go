package stores

import (
	"context"
	"database/sql"
	"errors"

	"github.com/machshop/enforcement/pkg/enforcement"
)

const (
	domainWorkflow = "workflow"
	domainQuality  = "quality"
)

// UpsertWorkflowOverride stores a partial workflow override at one scope
// level. Nil fields are persisted as NULL and defer to higher scopes.
func (s *SQLiteStore) UpsertWorkflowOverride(ctx context.Context, level enforcement.ScopeLevel, scopeID string, ov *enforcement.WorkflowOverride) error {
	query := `
		INSERT INTO config_overrides (domain, scope_level, scope_id, mode, enforce_status_gating, enforce_operation_sequence, enforce_quality_checks)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (domain, scope_level, scope_id) DO UPDATE SET
			mode = excluded.mode,
			enforce_status_gating = excluded.enforce_status_gating,
			enforce_operation_sequence = excluded.enforce_operation_sequence,
			enforce_quality_checks = excluded.enforce_quality_checks
	`

	_, err := s.db.ExecContext(ctx, query,
		domainWorkflow,
		level,
		scopeID,
		modeToNull(ov.Mode),
		boolToNull(ov.EnforceStatusGating),
		boolToNull(ov.EnforceOperationSequence),
		boolToNull(ov.EnforceQualityChecks),
	)
	if err != nil {
		return enforcement.NewTransientError("failed to upsert workflow override", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(scopeID)
	}

	return nil
}

// GetWorkflowOverride fetches the workflow override row at one scope
// level. Returns (nil, nil) when no row exists.
func (s *SQLiteStore) GetWorkflowOverride(ctx context.Context, level enforcement.ScopeLevel, scopeID string) (*enforcement.WorkflowOverride, error) {
	query := `
		SELECT mode, enforce_status_gating, enforce_operation_sequence, enforce_quality_checks
		FROM config_overrides
		WHERE domain = ? AND scope_level = ? AND scope_id = ?
	`

	var (
		mode     sql.NullString
		gating   sql.NullBool
		sequence sql.NullBool
		quality  sql.NullBool
	)
	err := s.db.QueryRowContext(ctx, query, domainWorkflow, level, scopeID).Scan(&mode, &gating, &sequence, &quality)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enforcement.NewTransientError("failed to get workflow override", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(scopeID)
	}

	ov := &enforcement.WorkflowOverride{
		EnforceStatusGating:      nullToBool(gating),
		EnforceOperationSequence: nullToBool(sequence),
		EnforceQualityChecks:     nullToBool(quality),
	}
	if mode.Valid {
		m := enforcement.WorkflowMode(mode.String)
		ov.Mode = &m
	}

	return ov, nil
}

// UpsertQualityOverride stores a partial quality override at one scope level.
func (s *SQLiteStore) UpsertQualityOverride(ctx context.Context, level enforcement.ScopeLevel, scopeID string, ov *enforcement.QualityOverride) error {
	query := `
		INSERT INTO config_overrides (domain, scope_level, scope_id, mode, enforce_inspection_pass, require_electronic_sig, accept_external_quality, quality_required)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (domain, scope_level, scope_id) DO UPDATE SET
			mode = excluded.mode,
			enforce_inspection_pass = excluded.enforce_inspection_pass,
			require_electronic_sig = excluded.require_electronic_sig,
			accept_external_quality = excluded.accept_external_quality,
			quality_required = excluded.quality_required
	`

	var mode any
	if ov.Mode != nil {
		mode = string(*ov.Mode)
	}

	_, err := s.db.ExecContext(ctx, query,
		domainQuality,
		level,
		scopeID,
		mode,
		boolToNull(ov.EnforceInspectionPass),
		boolToNull(ov.RequireElectronicSig),
		boolToNull(ov.AcceptExternalQuality),
		boolToNull(ov.QualityRequired),
	)
	if err != nil {
		return enforcement.NewTransientError("failed to upsert quality override", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(scopeID)
	}

	return nil
}

// GetQualityOverride fetches the quality override row at one scope level.
// Returns (nil, nil) when no row exists.
func (s *SQLiteStore) GetQualityOverride(ctx context.Context, level enforcement.ScopeLevel, scopeID string) (*enforcement.QualityOverride, error) {
	query := `
		SELECT mode, enforce_inspection_pass, require_electronic_sig, accept_external_quality, quality_required
		FROM config_overrides
		WHERE domain = ? AND scope_level = ? AND scope_id = ?
	`

	var (
		mode      sql.NullString
		pass      sql.NullBool
		signature sql.NullBool
		external  sql.NullBool
		required  sql.NullBool
	)
	err := s.db.QueryRowContext(ctx, query, domainQuality, level, scopeID).Scan(&mode, &pass, &signature, &external, &required)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enforcement.NewTransientError("failed to get quality override", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(scopeID)
	}

	ov := &enforcement.QualityOverride{
		EnforceInspectionPass: nullToBool(pass),
		RequireElectronicSig:  nullToBool(signature),
		AcceptExternalQuality: nullToBool(external),
		QualityRequired:       nullToBool(required),
	}
	if mode.Valid {
		m := enforcement.QualityMode(mode.String)
		ov.Mode = &m
	}

	return ov, nil
}

func modeToNull(m *enforcement.WorkflowMode) any {
	if m == nil {
		return nil
	}
	return string(*m)
}

func boolToNull(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func nullToBool(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Bool
	return &b
}
