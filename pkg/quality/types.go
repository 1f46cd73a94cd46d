package quality

import (
	"context"
	"time"

	"github.com/machshop/enforcement/pkg/enforcement"
)

// InspectionResult is the recorded outcome of a quality inspection.
type InspectionResult string

const (
	InspectionPass InspectionResult = "PASS"
	InspectionFail InspectionResult = "FAIL"
)

// Inspection is the read-only view of a completed quality inspection.
type Inspection struct {
	ID          string           `json:"id"`
	OperationID string           `json:"operation_id"`
	InspectorID string           `json:"inspector_id,omitempty"`
	Result      InspectionResult `json:"result"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Severity classifies a nonconformance.
type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

// Disposition is the resolution chosen for a nonconformance.
type Disposition string

const (
	DispositionUseAsIs          Disposition = "USE_AS_IS"
	DispositionRework           Disposition = "REWORK"
	DispositionRepair           Disposition = "REPAIR"
	DispositionScrap            Disposition = "SCRAP"
	DispositionReturnToSupplier Disposition = "RETURN_TO_SUPPLIER"
)

// NCR is the read-only view of a nonconformance report.
type NCR struct {
	ID       string   `json:"id"`
	Number   string   `json:"number"`
	SiteID   string   `json:"site_id"`
	Severity Severity `json:"severity"`
}

// DispositionRule configures which dispositions a severity permits.
type DispositionRule struct {
	Severity            Severity      `json:"severity" yaml:"severity" validate:"required"`
	AllowedDispositions []Disposition `json:"allowed_dispositions" yaml:"allowed_dispositions" validate:"min=1"`
	RequiresApproval    bool          `json:"requires_approval" yaml:"requires_approval"`
	ApprovalLevel       string        `json:"approval_level,omitempty" yaml:"approval_level,omitempty"`
}

// Allows reports whether the rule permits the proposed disposition.
func (r *DispositionRule) Allows(proposed Disposition) bool {
	for _, d := range r.AllowedDispositions {
		if d == proposed {
			return true
		}
	}
	return false
}

// SignatureRequirement is one electronic-signature requirement row, keyed
// by action type and site. An empty SiteID marks the global fallback rule.
type SignatureRequirement struct {
	ActionType        string `json:"action_type" yaml:"action_type" validate:"required"`
	SiteID            string `json:"site_id,omitempty" yaml:"site_id,omitempty"`
	RequiresSignature bool   `json:"requires_signature" yaml:"requires_signature"`
	SignatureLevel    string `json:"signature_level,omitempty" yaml:"signature_level,omitempty"`
}

// InspectionRequirement is the answer to "is an inspection required here".
type InspectionRequirement struct {
	Required bool                    `json:"required"`
	Mode     enforcement.QualityMode `json:"mode"`
	Reason   string                  `json:"reason"`
	Source   enforcement.ScopeLevel  `json:"source"`
}

// SignatureDecision is the answer to "is an electronic signature required".
type SignatureDecision struct {
	Required       bool   `json:"required"`
	SignatureLevel string `json:"signatureLevel,omitempty"`
}

// DispositionDecision is the answer to "is this disposition legal".
type DispositionDecision struct {
	Valid            bool   `json:"valid"`
	Reason           string `json:"reason,omitempty"`
	RequiresApproval bool   `json:"requiresApproval"`
	ApprovalLevel    string `json:"approvalLevel,omitempty"`
}

// InspectionStore fetches inspection records. GetLatestInspection returns
// (nil, nil) when no completed inspection exists for the operation.
type InspectionStore interface {
	GetLatestInspection(ctx context.Context, operationID string) (*Inspection, error)
}

// NCRStore fetches nonconformance reports. Implementations return an error
// with code NOT_FOUND when the NCR does not exist.
type NCRStore interface {
	GetNCR(ctx context.Context, id string) (*NCR, error)
}

// DispositionRuleSource fetches the configured disposition rule for a
// severity. A (nil, nil) return means no rule is configured and the
// built-in default policy applies.
type DispositionRuleSource interface {
	GetDispositionRule(ctx context.Context, severity Severity) (*DispositionRule, error)
}

// SignatureRuleSource fetches a signature requirement by action type and
// site. A (nil, nil) return means no row exists for that key; the gate
// falls back from site-specific to global (empty site) and then to
// not-required.
type SignatureRuleSource interface {
	GetSignatureRequirement(ctx context.Context, actionType, siteID string) (*SignatureRequirement, error)
}
