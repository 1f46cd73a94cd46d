package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/machshop/enforcement/pkg/enforcement"
	"github.com/machshop/enforcement/pkg/quality"
)

// CreateInspection records a completed quality inspection.
func (s *SQLiteStore) CreateInspection(ctx context.Context, insp *quality.Inspection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inspections (id, operation_id, inspector_id, result, completed_at) VALUES (?, ?, ?, ?, ?)`,
		insp.ID, insp.OperationID, insp.InspectorID, insp.Result, insp.CompletedAt,
	)
	if err != nil {
		return enforcement.NewTransientError("failed to create inspection", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(insp.ID)
	}

	return nil
}

// GetLatestInspection returns the most recent completed inspection for an
// operation, or (nil, nil) when none exists.
func (s *SQLiteStore) GetLatestInspection(ctx context.Context, operationID string) (*quality.Inspection, error) {
	query := `
		SELECT id, operation_id, inspector_id, result, completed_at
		FROM inspections
		WHERE operation_id = ?
		ORDER BY completed_at DESC
		LIMIT 1
	`

	insp := &quality.Inspection{}
	err := s.db.QueryRowContext(ctx, query, operationID).Scan(
		&insp.ID,
		&insp.OperationID,
		&insp.InspectorID,
		&insp.Result,
		&insp.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enforcement.NewTransientError("failed to get latest inspection", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(operationID)
	}

	return insp, nil
}

// CreateNCR records a nonconformance report.
func (s *SQLiteStore) CreateNCR(ctx context.Context, ncr *quality.NCR) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ncrs (id, number, site_id, severity) VALUES (?, ?, ?, ?)`,
		ncr.ID, ncr.Number, ncr.SiteID, ncr.Severity,
	)
	if err != nil {
		return enforcement.NewTransientError("failed to create NCR", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(ncr.ID)
	}

	return nil
}

// GetNCR retrieves a nonconformance report by ID.
func (s *SQLiteStore) GetNCR(ctx context.Context, id string) (*quality.NCR, error) {
	ncr := &quality.NCR{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, number, site_id, severity FROM ncrs WHERE id = ?`, id,
	).Scan(&ncr.ID, &ncr.Number, &ncr.SiteID, &ncr.Severity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, enforcement.NewNotFoundError(fmt.Sprintf("NCR not found: %s", id), id)
	}
	if err != nil {
		return nil, enforcement.NewTransientError("failed to get NCR", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(id)
	}

	return ncr, nil
}

// UpsertDispositionRule stores the disposition rule for a severity. The
// allowed disposition list is persisted as JSON.
func (s *SQLiteStore) UpsertDispositionRule(ctx context.Context, rule *quality.DispositionRule) error {
	allowed, err := json.Marshal(rule.AllowedDispositions)
	if err != nil {
		return enforcement.NewPermanentError("failed to encode allowed dispositions", err).
			WithCode(enforcement.ErrCodeValidation)
	}

	query := `
		INSERT INTO disposition_rules (severity, allowed_dispositions, requires_approval, approval_level)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (severity) DO UPDATE SET
			allowed_dispositions = excluded.allowed_dispositions,
			requires_approval = excluded.requires_approval,
			approval_level = excluded.approval_level
	`

	_, err = s.db.ExecContext(ctx, query, rule.Severity, string(allowed), rule.RequiresApproval, rule.ApprovalLevel)
	if err != nil {
		return enforcement.NewTransientError("failed to upsert disposition rule", err).
			WithCode(enforcement.ErrCodeStoreFailed)
	}

	return nil
}

// GetDispositionRule returns the configured rule for a severity, or
// (nil, nil) when none is configured.
func (s *SQLiteStore) GetDispositionRule(ctx context.Context, severity quality.Severity) (*quality.DispositionRule, error) {
	var (
		rule    quality.DispositionRule
		allowed string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT severity, allowed_dispositions, requires_approval, approval_level FROM disposition_rules WHERE severity = ?`,
		severity,
	).Scan(&rule.Severity, &allowed, &rule.RequiresApproval, &rule.ApprovalLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enforcement.NewTransientError("failed to get disposition rule", err).
			WithCode(enforcement.ErrCodeStoreFailed)
	}

	if err := json.Unmarshal([]byte(allowed), &rule.AllowedDispositions); err != nil {
		return nil, enforcement.NewPermanentError("failed to decode allowed dispositions", err).
			WithCode(enforcement.ErrCodeInternal)
	}

	return &rule, nil
}

// UpsertSignatureRequirement stores a signature requirement row. An empty
// SiteID stores the global fallback for the action type.
func (s *SQLiteStore) UpsertSignatureRequirement(ctx context.Context, req *quality.SignatureRequirement) error {
	query := `
		INSERT INTO signature_requirements (action_type, site_id, requires_signature, signature_level)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (action_type, site_id) DO UPDATE SET
			requires_signature = excluded.requires_signature,
			signature_level = excluded.signature_level
	`

	_, err := s.db.ExecContext(ctx, query, req.ActionType, req.SiteID, req.RequiresSignature, req.SignatureLevel)
	if err != nil {
		return enforcement.NewTransientError("failed to upsert signature requirement", err).
			WithCode(enforcement.ErrCodeStoreFailed)
	}

	return nil
}

// GetSignatureRequirement returns the signature requirement for an action
// type and site, or (nil, nil) when no row exists for that exact key.
func (s *SQLiteStore) GetSignatureRequirement(ctx context.Context, actionType, siteID string) (*quality.SignatureRequirement, error) {
	req := &quality.SignatureRequirement{}
	err := s.db.QueryRowContext(ctx,
		`SELECT action_type, site_id, requires_signature, signature_level FROM signature_requirements WHERE action_type = ? AND site_id = ?`,
		actionType, siteID,
	).Scan(&req.ActionType, &req.SiteID, &req.RequiresSignature, &req.SignatureLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enforcement.NewTransientError("failed to get signature requirement", err).
			WithCode(enforcement.ErrCodeStoreFailed)
	}

	return req, nil
}
