// Package audit appends immutable records of enforcement actions and the
// bypasses actually applied, and serves the per-work-order audit trail.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/machshop/enforcement/pkg/enforcement"
	"github.com/machshop/enforcement/pkg/telemetry"
)

// Entry is one immutable audit record. Entries are created only by the
// Recorder, never mutated or deleted.
type Entry struct {
	ID              string    `json:"id"`
	WorkOrderID     string    `json:"work_order_id"`
	OperationID     string    `json:"operation_id,omitempty"`
	Action          string    `json:"action"`
	EnforcementMode string    `json:"enforcement_mode"`
	Bypasses        []string  `json:"bypasses_applied"`
	UserID          string    `json:"user_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// Store is the append-only persistence contract for audit entries.
type Store interface {
	AppendAuditEntry(ctx context.Context, entry *Entry) error

	// ListAuditEntries returns every entry for a work order in
	// chronological order.
	ListAuditEntries(ctx context.Context, workOrderID string) ([]*Entry, error)
}

// Recorder appends audit entries for enforcement decisions. Recording is
// fire-and-forget relative to the decision itself: a failed write is
// logged and reported, but it never retroactively changes a decision
// already returned to the caller.
type Recorder struct {
	store   Store
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// NewRecorder creates an audit recorder. Metrics may be nil.
func NewRecorder(store Store, logger zerolog.Logger, metrics *telemetry.Metrics) *Recorder {
	return &Recorder{
		store:   store,
		logger:  logger.With().Str("component", "audit-recorder").Logger(),
		metrics: metrics,
	}
}

// RecordEnforcementBypass appends one entry for a workflow enforcement
// decision that carried bypasses.
func (r *Recorder) RecordEnforcementBypass(ctx context.Context, workOrderID, operationID, action string, decision *enforcement.Decision, userID string) (*Entry, error) {
	return r.record(ctx, workOrderID, operationID, action, decision, userID)
}

// RecordQualityEnforcementAction appends one entry for a quality
// enforcement decision.
func (r *Recorder) RecordQualityEnforcementAction(ctx context.Context, workOrderID, operationID, action string, decision *enforcement.Decision, userID string) (*Entry, error) {
	return r.record(ctx, workOrderID, operationID, action, decision, userID)
}

func (r *Recorder) record(ctx context.Context, workOrderID, operationID, action string, decision *enforcement.Decision, userID string) (*Entry, error) {
	entry := &Entry{
		ID:              uuid.New().String(),
		WorkOrderID:     workOrderID,
		OperationID:     operationID,
		Action:          action,
		EnforcementMode: decision.ConfigMode,
		Bypasses:        append([]string(nil), decision.BypassesApplied...),
		UserID:          userID,
		Timestamp:       time.Now().UTC(),
	}

	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		r.metrics.RecordAuditWrite(false)
		r.logger.Error().Err(err).
			Str("work_order_id", workOrderID).
			Str("action", action).
			Msg("Failed to append audit entry")
		return nil, err
	}

	r.metrics.RecordAuditWrite(true)
	r.logger.Info().
		Str("work_order_id", workOrderID).
		Str("operation_id", operationID).
		Str("action", action).
		Strs("bypasses", entry.Bypasses).
		Str("user_id", userID).
		Msg("Enforcement action audited")

	return entry, nil
}

// GetAuditTrail returns all entries for a work order, ordered
// chronologically.
func (r *Recorder) GetAuditTrail(ctx context.Context, workOrderID string) ([]*Entry, error) {
	return r.store.ListAuditEntries(ctx, workOrderID)
}
