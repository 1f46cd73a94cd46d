package quality

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/machshop/enforcement/pkg/enforcement"
)

// Gate specializes the enforcement engine for quality questions: whether
// inspection is required, whether completion may proceed without a passing
// inspection, whether an electronic signature is required, and whether a
// proposed nonconformance disposition is legal.
// It implements enforcement.QualityGate.
type Gate struct {
	workOrders       enforcement.WorkOrderStore
	operations       enforcement.OperationStore
	resolver         enforcement.Resolver
	inspections      InspectionStore
	ncrs             NCRStore
	dispositionRules DispositionRuleSource
	signatures       SignatureRuleSource
	logger           zerolog.Logger
}

// GateDeps carries the collaborators a Gate needs.
type GateDeps struct {
	WorkOrders       enforcement.WorkOrderStore
	Operations       enforcement.OperationStore
	Resolver         enforcement.Resolver
	Inspections      InspectionStore
	NCRs             NCRStore
	DispositionRules DispositionRuleSource
	Signatures       SignatureRuleSource
	Logger           zerolog.Logger
}

// NewGate creates a quality gate.
func NewGate(deps GateDeps) *Gate {
	return &Gate{
		workOrders:       deps.WorkOrders,
		operations:       deps.Operations,
		resolver:         deps.Resolver,
		inspections:      deps.Inspections,
		ncrs:             deps.NCRs,
		dispositionRules: deps.DispositionRules,
		signatures:       deps.Signatures,
		logger:           deps.Logger.With().Str("component", "quality-gate").Logger(),
	}
}

// resolveForOperation resolves the effective quality configuration at the
// operation's scope.
func (g *Gate) resolveForOperation(ctx context.Context, operationID string) (*enforcement.QualityConfig, error) {
	op, err := g.operations.GetOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	wo, err := g.workOrders.GetWorkOrder(ctx, op.WorkOrderID)
	if err != nil {
		return nil, err
	}
	return g.resolver.ResolveQuality(ctx, enforcement.Scope{
		SiteID:      wo.SiteID,
		RoutingID:   wo.RoutingID,
		WorkOrderID: wo.ID,
		OperationID: op.ID,
	})
}

// notFoundReason names the missing entity behind a not-found store error.
// The entity is the work order when the operation row exists but its parent
// does not.
func notFoundReason(err error, operationID string) string {
	var e *enforcement.Error
	if errors.As(err, &e) && e.Entity != "" && e.Entity != operationID {
		return fmt.Sprintf("work order %s not found", e.Entity)
	}
	return fmt.Sprintf("operation %s not found", operationID)
}

// IsInspectionRequired reports whether a quality inspection is required for
// the operation. An operation-level exemption (QualityRequired=false at the
// OPERATION scope) wins regardless of mode. EXTERNAL mode never requires a
// local inspection; quality is accepted from an outside system instead.
func (g *Gate) IsInspectionRequired(ctx context.Context, operationID string) (*InspectionRequirement, error) {
	cfg, err := g.resolveForOperation(ctx, operationID)
	if err != nil {
		if enforcement.IsNotFound(err) {
			return &InspectionRequirement{
				Required: false,
				Reason:   notFoundReason(err, operationID),
			}, nil
		}
		return nil, err
	}

	if !cfg.QualityRequired && cfg.RequiredSource == enforcement.ScopeOperation {
		return &InspectionRequirement{
			Required: false,
			Mode:     cfg.Mode,
			Reason:   "Quality inspection exempted at the operation level",
			Source:   enforcement.ScopeOperation,
		}, nil
	}

	req := &InspectionRequirement{Mode: cfg.Mode, Source: cfg.RequiredSource}
	switch cfg.Mode {
	case enforcement.QualityExternal:
		req.Reason = "Quality results are accepted from an external system"
	case enforcement.QualityStrict:
		if cfg.QualityRequired {
			req.Required = true
			req.Reason = fmt.Sprintf("Quality inspection is required in %s mode", cfg.Mode)
		} else {
			req.Reason = "Quality inspection is not required for this scope"
		}
	case enforcement.QualityRecommended:
		req.Reason = "Quality inspection is recommended but not required"
	default:
		req.Reason = "Quality inspection is optional"
	}
	return req, nil
}

// CanCompleteWithoutPassingInspection decides whether an operation may
// complete given its most recent inspection. Under EnforceInspectionPass a
// missing or failed inspection is a rejection; otherwise it degrades to a
// warning plus a quality_pass_requirement bypass.
func (g *Gate) CanCompleteWithoutPassingInspection(ctx context.Context, operationID string) (*enforcement.Decision, error) {
	cfg, err := g.resolveForOperation(ctx, operationID)
	if err != nil {
		if enforcement.IsNotFound(err) {
			return &enforcement.Decision{
				Allowed: false,
				Reason:  notFoundReason(err, operationID),
			}, nil
		}
		return nil, err
	}

	inspection, err := g.inspections.GetLatestInspection(ctx, operationID)
	if err != nil {
		return nil, err
	}

	mode := string(cfg.Mode)

	// EXTERNAL mode accepts quality from an outside system; the local
	// inspection-pass requirement does not apply.
	if cfg.Mode == enforcement.QualityExternal {
		return &enforcement.Decision{
			Allowed:    true,
			ConfigMode: mode,
			EnforcementChecks: []enforcement.CheckResult{
				{Name: enforcement.CheckInspectionPass, Enforced: false, Passed: true},
			},
		}, nil
	}

	passed := inspection != nil && inspection.Result == InspectionPass

	if cfg.EnforceInspectionPass {
		switch {
		case inspection == nil:
			return &enforcement.Decision{
				Allowed:    false,
				Reason:     fmt.Sprintf("quality inspection not performed for operation %s", operationID),
				ConfigMode: mode,
				EnforcementChecks: []enforcement.CheckResult{
					{Name: enforcement.CheckInspectionPass, Enforced: true, Passed: false},
				},
			}, nil
		case inspection.Result == InspectionFail:
			return &enforcement.Decision{
				Allowed:    false,
				Reason:     fmt.Sprintf("quality inspection failed for operation %s", operationID),
				ConfigMode: mode,
				EnforcementChecks: []enforcement.CheckResult{
					{Name: enforcement.CheckInspectionPass, Enforced: true, Passed: false},
				},
			}, nil
		default:
			return &enforcement.Decision{
				Allowed:    true,
				ConfigMode: mode,
				EnforcementChecks: []enforcement.CheckResult{
					{Name: enforcement.CheckInspectionPass, Enforced: true, Passed: true},
				},
			}, nil
		}
	}

	d := &enforcement.Decision{Allowed: true, ConfigMode: mode}
	if passed {
		d.EnforcementChecks = append(d.EnforcementChecks,
			enforcement.CheckResult{Name: enforcement.CheckInspectionPass, Enforced: false, Passed: true})
		return d, nil
	}

	if inspection == nil {
		d.Warnings = append(d.Warnings, "quality inspection not performed, completing without inspection")
	} else {
		d.Warnings = append(d.Warnings, "quality inspection failed, completing without a passing inspection")
	}
	d.BypassesApplied = append(d.BypassesApplied, enforcement.BypassQualityPass)
	d.EnforcementChecks = append(d.EnforcementChecks,
		enforcement.CheckResult{Name: enforcement.CheckInspectionPass, Enforced: false, Passed: false})

	g.logger.Warn().
		Str("operation_id", operationID).
		Str("mode", mode).
		Msg("Inspection pass requirement bypassed")

	return d, nil
}

// IsElectronicSignatureRequired looks up the signature requirement for an
// action at a site. Site-specific rows win; a global row (empty site) is
// the fallback; absence of both means no signature is required.
func (g *Gate) IsElectronicSignatureRequired(ctx context.Context, actionType, siteID string) (*SignatureDecision, error) {
	row, err := g.signatures.GetSignatureRequirement(ctx, actionType, siteID)
	if err != nil {
		return nil, err
	}
	if row == nil && siteID != "" {
		row, err = g.signatures.GetSignatureRequirement(ctx, actionType, "")
		if err != nil {
			return nil, err
		}
	}
	if row == nil {
		return &SignatureDecision{Required: false}, nil
	}
	return &SignatureDecision{
		Required:       row.RequiresSignature,
		SignatureLevel: row.SignatureLevel,
	}, nil
}

// ValidateNCRDisposition checks whether a proposed disposition is legal for
// an NCR's severity. With no configured rule the built-in default applies:
// CRITICAL severity may never use USE_AS_IS; every other combination is
// valid with no approval required. The default exists so that absent
// administrative configuration never silently permits an unsafe
// disposition for critical nonconformances.
func (g *Gate) ValidateNCRDisposition(ctx context.Context, ncrID string, proposed Disposition) (*DispositionDecision, error) {
	ncr, err := g.ncrs.GetNCR(ctx, ncrID)
	if err != nil {
		if enforcement.IsNotFound(err) {
			return &DispositionDecision{
				Valid:  false,
				Reason: fmt.Sprintf("NCR %s not found", ncrID),
			}, nil
		}
		return nil, err
	}

	rule, err := g.dispositionRules.GetDispositionRule(ctx, ncr.Severity)
	if err != nil {
		return nil, err
	}

	if rule != nil {
		d := &DispositionDecision{
			Valid:            rule.Allows(proposed),
			RequiresApproval: rule.RequiresApproval,
			ApprovalLevel:    rule.ApprovalLevel,
		}
		if !d.Valid {
			d.Reason = fmt.Sprintf("Disposition %s is not allowed for %s severity", proposed, ncr.Severity)
		}
		return d, nil
	}

	if ncr.Severity == SeverityCritical && proposed == DispositionUseAsIs {
		return &DispositionDecision{
			Valid:  false,
			Reason: "Critical nonconformances may not be dispositioned as USE_AS_IS",
		}, nil
	}

	return &DispositionDecision{Valid: true}, nil
}
