package enforcement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/machshop/enforcement/pkg/telemetry"
)

// Engine is the enforcement decision combinator. Given an effective
// configuration and one or more named checks it produces a single Decision
// with consistent allow/warn/deny semantics across every call site.
//
// Checks come in two kinds. Hard checks (object existence, illegal state
// transitions) behave identically in every mode and never appear in
// BypassesApplied. Soft checks are gated by an Enforce* flag: when the flag
// is on they behave like hard checks; when it is off a failure becomes a
// warning plus a bypass identifier instead of a rejection.
type Engine struct {
	workOrders    WorkOrderStore
	operations    OperationStore
	resolver      Resolver
	prerequisites PrerequisiteValidator
	quality       QualityGate
	logger        zerolog.Logger
	metrics       *telemetry.Metrics
	tracer        *telemetry.Tracer
}

// Deps carries the collaborators an Engine needs. Quality may be nil when
// the caller never invokes CanCompleteOperation under quality enforcement.
type Deps struct {
	WorkOrders    WorkOrderStore
	Operations    OperationStore
	Resolver      Resolver
	Prerequisites PrerequisiteValidator
	Quality       QualityGate
	Logger        zerolog.Logger

	// Metrics and Tracer are optional; nil disables instrumentation.
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// NewEngine creates a decision engine.
func NewEngine(deps Deps) *Engine {
	return &Engine{
		workOrders:    deps.WorkOrders,
		operations:    deps.Operations,
		resolver:      deps.Resolver,
		prerequisites: deps.Prerequisites,
		quality:       deps.Quality,
		logger:        deps.Logger.With().Str("component", "decision-engine").Logger(),
		metrics:       deps.Metrics,
		tracer:        deps.Tracer,
	}
}

// CanRecordPerformance decides whether performance data may be recorded
// against a work order. The "Status Gating" check passes iff the work order
// is IN_PROGRESS; under EnforceStatusGating=false a failure degrades to a
// warning and a status_gating bypass.
func (e *Engine) CanRecordPerformance(ctx context.Context, workOrderID string) (*Decision, error) {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "enforcement.can_record_performance",
		attribute.String("work_order.id", workOrderID))
	defer span.End()

	wo, err := e.workOrders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		if IsNotFound(err) {
			return e.finish(ctx, "record_performance", start,
				deny("", fmt.Sprintf("work order %s not found", workOrderID))), nil
		}
		return nil, err
	}

	cfg, err := e.resolver.ResolveWorkflow(ctx, Scope{
		SiteID:      wo.SiteID,
		RoutingID:   wo.RoutingID,
		WorkOrderID: wo.ID,
	})
	if err != nil {
		return nil, err
	}

	d := &Decision{Allowed: true, ConfigMode: string(cfg.Mode)}

	passed := wo.Status == WorkOrderInProgress
	switch {
	case passed:
		d.EnforcementChecks = append(d.EnforcementChecks,
			CheckResult{Name: CheckStatusGating, Enforced: cfg.EnforceStatusGating, Passed: true})
	case cfg.EnforceStatusGating:
		d = deny(string(cfg.Mode),
			fmt.Sprintf("work order status is %s, must be %s to record performance", wo.Status, WorkOrderInProgress),
			CheckResult{Name: CheckStatusGating, Enforced: true, Passed: false})
	default:
		d.Warnings = append(d.Warnings,
			fmt.Sprintf("status gating bypassed: work order status is %s, expected %s", wo.Status, WorkOrderInProgress))
		d.BypassesApplied = append(d.BypassesApplied, BypassStatusGating)
		d.EnforcementChecks = append(d.EnforcementChecks,
			CheckResult{Name: CheckStatusGating, Enforced: false, Passed: false})
	}

	return e.finish(ctx, "record_performance", start, d), nil
}

// CanStartOperation decides whether an operation may transition from
// CREATED to IN_PROGRESS. The operation-status check is hard: starting an
// operation that is already IN_PROGRESS or COMPLETED is rejected in every
// mode. Prerequisite sequencing is soft and may be bypassed when the mode
// tolerates it or EnforceOperationSequence is off.
func (e *Engine) CanStartOperation(ctx context.Context, workOrderID, operationID string) (*Decision, error) {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "enforcement.can_start_operation",
		attribute.String("work_order.id", workOrderID),
		attribute.String("operation.id", operationID))
	defer span.End()

	op, cfg, d, err := e.loadOperation(ctx, workOrderID, operationID)
	if err != nil {
		return nil, err
	}
	if d != nil {
		return e.finish(ctx, "start_operation", start, d), nil
	}

	if op.Status != OperationCreated {
		return e.finish(ctx, "start_operation", start, deny(string(cfg.Mode),
			fmt.Sprintf("operation is %s, must be %s to start", op.Status, OperationCreated),
			CheckResult{Name: CheckOperationStatus, Enforced: true, Passed: false})), nil
	}

	d = &Decision{
		Allowed:    true,
		ConfigMode: string(cfg.Mode),
		EnforcementChecks: []CheckResult{
			{Name: CheckOperationStatus, Enforced: true, Passed: true},
		},
	}

	validation, err := e.prerequisites.ValidatePrerequisites(ctx, workOrderID, operationID, cfg.Mode)
	if err != nil {
		return nil, err
	}

	switch {
	case len(validation.UnmetPrerequisites) == 0:
		d.EnforcementChecks = append(d.EnforcementChecks,
			CheckResult{Name: CheckOperationSequence, Enforced: cfg.EnforceOperationSequence, Passed: true})

	case validation.Valid || !cfg.EnforceOperationSequence:
		warnings := validation.Warnings
		if len(warnings) == 0 {
			warnings = []string{fmt.Sprintf("%d prerequisite(s) not met, but operation sequencing is not enforced",
				len(validation.UnmetPrerequisites))}
		}
		d.Warnings = append(d.Warnings, warnings...)
		d.BypassesApplied = append(d.BypassesApplied, BypassOperationSequence)
		d.EnforcementChecks = append(d.EnforcementChecks,
			CheckResult{Name: CheckOperationSequence, Enforced: false, Passed: false})

	default:
		d = deny(string(cfg.Mode),
			"Unmet prerequisites: "+formatUnmet(validation.UnmetPrerequisites),
			append(d.EnforcementChecks,
				CheckResult{Name: CheckOperationSequence, Enforced: true, Passed: false})...)
	}

	return e.finish(ctx, "start_operation", start, d), nil
}

// CanCompleteOperation decides whether an operation may transition from
// IN_PROGRESS to COMPLETED. The status check is hard. Under
// EnforceQualityChecks the quality gate must also be satisfied; the gate's
// own checks, warnings, and bypasses are carried into the decision.
func (e *Engine) CanCompleteOperation(ctx context.Context, workOrderID, operationID string) (*Decision, error) {
	start := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "enforcement.can_complete_operation",
		attribute.String("work_order.id", workOrderID),
		attribute.String("operation.id", operationID))
	defer span.End()

	op, cfg, d, err := e.loadOperation(ctx, workOrderID, operationID)
	if err != nil {
		return nil, err
	}
	if d != nil {
		return e.finish(ctx, "complete_operation", start, d), nil
	}

	if op.Status != OperationInProgress {
		return e.finish(ctx, "complete_operation", start, deny(string(cfg.Mode),
			fmt.Sprintf("operation is %s, must be %s to complete", op.Status, OperationInProgress),
			CheckResult{Name: CheckOperationStatus, Enforced: true, Passed: false})), nil
	}

	d = &Decision{
		Allowed:    true,
		ConfigMode: string(cfg.Mode),
		EnforcementChecks: []CheckResult{
			{Name: CheckOperationStatus, Enforced: true, Passed: true},
		},
	}

	if !cfg.EnforceQualityChecks {
		// Quality gating skipped entirely under this configuration. The
		// check row records that it was not enforced.
		d.EnforcementChecks = append(d.EnforcementChecks,
			CheckResult{Name: CheckQuality, Enforced: false, Passed: true})
		return e.finish(ctx, "complete_operation", start, d), nil
	}

	gate, err := e.quality.CanCompleteWithoutPassingInspection(ctx, operationID)
	if err != nil {
		return nil, err
	}

	if !gate.Allowed {
		return e.finish(ctx, "complete_operation", start, deny(string(cfg.Mode), gate.Reason,
			append(d.EnforcementChecks, gate.EnforcementChecks...)...)), nil
	}

	d.Warnings = append(d.Warnings, gate.Warnings...)
	d.BypassesApplied = append(d.BypassesApplied, gate.BypassesApplied...)
	d.EnforcementChecks = append(d.EnforcementChecks, gate.EnforcementChecks...)

	return e.finish(ctx, "complete_operation", start, d), nil
}

// loadOperation fetches the operation and resolves the workflow config for
// its scope. A non-nil Decision return means the request was rejected on a
// hard existence or ownership check.
func (e *Engine) loadOperation(ctx context.Context, workOrderID, operationID string) (*Operation, *WorkflowConfig, *Decision, error) {
	op, err := e.operations.GetOperation(ctx, operationID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, deny("", fmt.Sprintf("operation %s not found", operationID)), nil
		}
		return nil, nil, nil, err
	}

	if op.WorkOrderID != workOrderID {
		return nil, nil, deny("",
			fmt.Sprintf("operation %s does not belong to work order %s", operationID, workOrderID)), nil
	}

	wo, err := e.workOrders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, deny("", fmt.Sprintf("work order %s not found", workOrderID)), nil
		}
		return nil, nil, nil, err
	}

	cfg, err := e.resolver.ResolveWorkflow(ctx, Scope{
		SiteID:      wo.SiteID,
		RoutingID:   wo.RoutingID,
		WorkOrderID: wo.ID,
		OperationID: op.ID,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return op, cfg, nil, nil
}

// finish records instrumentation for a completed decision and returns it.
func (e *Engine) finish(ctx context.Context, operation string, start time.Time, d *Decision) *Decision {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Bool("decision.allowed", d.Allowed),
		attribute.Int("decision.bypasses", len(d.BypassesApplied)))

	e.metrics.RecordDecision(operation, d.Allowed, time.Since(start))
	for _, b := range d.BypassesApplied {
		e.metrics.RecordBypass(b)
	}

	evt := e.logger.Debug()
	if len(d.BypassesApplied) > 0 {
		evt = e.logger.Warn()
	}
	evt.Str("operation", operation).
		Bool("allowed", d.Allowed).
		Strs("bypasses", d.BypassesApplied).
		Str("mode", d.ConfigMode).
		Msg("Enforcement decision computed")

	return d
}

func formatUnmet(edges []PrerequisiteEdge) string {
	parts := make([]string, 0, len(edges))
	for _, edge := range edges {
		parts = append(parts, fmt.Sprintf("%s (seq %d): %s",
			edge.PrerequisiteOperationName, edge.PrerequisiteOperationSeq, edge.Reason))
	}
	return strings.Join(parts, "; ")
}
