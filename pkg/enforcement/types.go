package enforcement

import "time"

// WorkflowMode controls how workflow checks (status gating, operation
// sequencing) are applied for a given scope.
type WorkflowMode string

const (
	// WorkflowStrict enforces every workflow check. No bypasses are possible.
	WorkflowStrict WorkflowMode = "STRICT"

	// WorkflowFlexible tolerates failed soft checks, recording them as
	// warnings and bypasses instead of rejections.
	WorkflowFlexible WorkflowMode = "FLEXIBLE"

	// WorkflowHybrid tolerates operation-sequence bypasses while keeping
	// quality requirements enforced.
	WorkflowHybrid WorkflowMode = "HYBRID"
)

// ToleratesSequenceBypass reports whether unmet operation prerequisites
// may be bypassed under this mode.
func (m WorkflowMode) ToleratesSequenceBypass() bool {
	return m == WorkflowFlexible || m == WorkflowHybrid
}

// QualityMode controls how quality checks (inspection requirements,
// inspection pass enforcement) are applied for a given scope.
type QualityMode string

const (
	// QualityStrict requires inspections and a passing result before completion.
	QualityStrict QualityMode = "STRICT"

	// QualityRecommended records missing or failed inspections as warnings.
	QualityRecommended QualityMode = "RECOMMENDED"

	// QualityOptional never requires inspections.
	QualityOptional QualityMode = "OPTIONAL"

	// QualityExternal accepts quality results from an outside system; local
	// inspections are never required.
	QualityExternal QualityMode = "EXTERNAL"
)

// ScopeLevel identifies which level of the configuration hierarchy
// contributed a resolved value.
type ScopeLevel string

const (
	ScopeSystem    ScopeLevel = "SYSTEM"
	ScopeSite      ScopeLevel = "SITE"
	ScopeRouting   ScopeLevel = "ROUTING"
	ScopeWorkOrder ScopeLevel = "WORK_ORDER"
	ScopeOperation ScopeLevel = "OPERATION"
)

// Scope carries the identifiers a resolution request applies to.
// SiteID is always required; the remaining identifiers are optional and an
// empty string means the scope level does not apply to this request.
type Scope struct {
	SiteID      string `json:"site_id"`
	RoutingID   string `json:"routing_id,omitempty"`
	WorkOrderID string `json:"work_order_id,omitempty"`
	OperationID string `json:"operation_id,omitempty"`
}

// Provenance records which scope levels contributed at least one winning
// value during resolution. Used for diagnostics only.
type Provenance struct {
	Site      bool `json:"site"`
	Routing   bool `json:"routing,omitempty"`
	WorkOrder bool `json:"work_order,omitempty"`
	Operation bool `json:"operation,omitempty"`
}

// WorkflowConfig is the fully merged workflow policy for one decision.
// It is ephemeral: computed per call and never persisted.
type WorkflowConfig struct {
	Mode                     WorkflowMode `json:"mode"`
	EnforceStatusGating      bool         `json:"enforce_status_gating"`
	EnforceOperationSequence bool         `json:"enforce_operation_sequence"`
	EnforceQualityChecks     bool         `json:"enforce_quality_checks"`
	Source                   Provenance   `json:"source"`
}

// QualityConfig is the fully merged quality policy for one decision.
type QualityConfig struct {
	Mode                  QualityMode `json:"mode"`
	EnforceInspectionPass bool        `json:"enforce_inspection_pass"`
	RequireElectronicSig  bool        `json:"require_electronic_sig"`
	AcceptExternalQuality bool        `json:"accept_external_quality"`

	// QualityRequired may be overridden to false at the operation level even
	// under a strict site mode. RequiredSource names the scope that decided it.
	QualityRequired bool       `json:"quality_required"`
	RequiredSource  ScopeLevel `json:"required_source"`

	Source Provenance `json:"source"`
}

// WorkflowOverride is one partial workflow configuration row at a single
// scope level. Nil fields defer to the next-higher scope.
type WorkflowOverride struct {
	Mode                     *WorkflowMode `json:"mode,omitempty"`
	EnforceStatusGating      *bool         `json:"enforce_status_gating,omitempty"`
	EnforceOperationSequence *bool         `json:"enforce_operation_sequence,omitempty"`
	EnforceQualityChecks     *bool         `json:"enforce_quality_checks,omitempty"`
}

// QualityOverride is one partial quality configuration row at a single
// scope level.
type QualityOverride struct {
	Mode                  *QualityMode `json:"mode,omitempty"`
	EnforceInspectionPass *bool        `json:"enforce_inspection_pass,omitempty"`
	RequireElectronicSig  *bool        `json:"require_electronic_sig,omitempty"`
	AcceptExternalQuality *bool        `json:"accept_external_quality,omitempty"`
	QualityRequired       *bool        `json:"quality_required,omitempty"`
}

// CheckResult records the outcome of a single named enforcement check so
// callers and tests can audit why a decision came out the way it did.
type CheckResult struct {
	Name     string `json:"name"`
	Enforced bool   `json:"enforced"`
	Passed   bool   `json:"passed"`
}

// Bypass identifiers recorded in decisions and the audit trail.
const (
	BypassStatusGating      = "status_gating"
	BypassOperationSequence = "operation_sequence"
	BypassQualityPass       = "quality_pass_requirement"
)

// Check names used in decision check lists.
const (
	CheckStatusGating      = "Status Gating"
	CheckOperationStatus   = "Operation Status"
	CheckOperationSequence = "Operation Sequence"
	CheckQuality           = "Quality Checks"
	CheckInspectionPass    = "Inspection Pass"
)

// Decision is the output contract of every public decision operation.
//
// Invariants:
//   - Allowed == false implies BypassesApplied is empty.
//   - Every entry in BypassesApplied corresponds to a check in
//     EnforcementChecks with Enforced == false and Passed == false.
type Decision struct {
	Allowed           bool          `json:"allowed"`
	Reason            string        `json:"reason,omitempty"`
	Warnings          []string      `json:"warnings,omitempty"`
	BypassesApplied   []string      `json:"bypassesApplied,omitempty"`
	ConfigMode        string        `json:"configMode,omitempty"`
	EnforcementChecks []CheckResult `json:"enforcementChecks,omitempty"`
}

// deny builds a rejection. Rejections never carry bypasses.
func deny(mode, reason string, checks ...CheckResult) *Decision {
	return &Decision{
		Allowed:           false,
		Reason:            reason,
		ConfigMode:        mode,
		EnforcementChecks: checks,
	}
}

// WorkOrderStatus is the lifecycle status of a work order.
type WorkOrderStatus string

const (
	WorkOrderCreated    WorkOrderStatus = "CREATED"
	WorkOrderReleased   WorkOrderStatus = "RELEASED"
	WorkOrderInProgress WorkOrderStatus = "IN_PROGRESS"
	WorkOrderOnHold     WorkOrderStatus = "ON_HOLD"
	WorkOrderCompleted  WorkOrderStatus = "COMPLETED"
	WorkOrderCancelled  WorkOrderStatus = "CANCELLED"
)

// OperationStatus is the lifecycle status of a work-order operation.
// The only transitions this engine authorizes are CREATED -> IN_PROGRESS
// (start) and IN_PROGRESS -> COMPLETED (complete).
type OperationStatus string

const (
	OperationCreated    OperationStatus = "CREATED"
	OperationInProgress OperationStatus = "IN_PROGRESS"
	OperationCompleted  OperationStatus = "COMPLETED"
	OperationSkipped    OperationStatus = "SKIPPED"
)

// WorkOrder is the read-only view of a work order this engine consumes.
type WorkOrder struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	SiteID     string          `json:"site_id"`
	RoutingID  string          `json:"routing_id,omitempty"`
	PartNumber string          `json:"part_number,omitempty"`
	Status     WorkOrderStatus `json:"status"`
	Priority   string          `json:"priority,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Operation is the read-only view of a work-order operation instance.
// RoutingStepID links the instance back to the routing step it was
// instantiated from; prerequisite edges are declared between routing steps.
type Operation struct {
	ID            string          `json:"id"`
	WorkOrderID   string          `json:"work_order_id"`
	RoutingStepID string          `json:"routing_step_id"`
	Name          string          `json:"name"`
	Sequence      int             `json:"sequence"`
	Status        OperationStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DependencyType classifies a prerequisite edge between routing steps.
type DependencyType string

const (
	// DependencySequential requires the prerequisite operation to be
	// COMPLETED before the dependent operation may start.
	DependencySequential DependencyType = "SEQUENTIAL"

	// DependencyOverlap allows the dependent operation to start once the
	// prerequisite is at least IN_PROGRESS.
	DependencyOverlap DependencyType = "OVERLAP"
)

// PrerequisiteEdge describes one dependency relation between the current
// operation and a prerequisite operation. Reason is populated only when the
// edge is unmet.
type PrerequisiteEdge struct {
	PrerequisiteOperationID   string         `json:"prerequisiteOperationId"`
	PrerequisiteOperationName string         `json:"prerequisiteOperationName"`
	PrerequisiteOperationSeq  int            `json:"prerequisiteOperationSeq"`
	CurrentOperationSeq       int            `json:"currentOperationSeq"`
	DependencyType            DependencyType `json:"dependencyType"`
	Reason                    string         `json:"reason,omitempty"`
}

// PrerequisiteValidation is the result of walking an operation's
// prerequisite edges. Valid is true iff no edge is unmet or the mode
// tolerates proceeding with unmet prerequisites, in which case Warnings is
// non-empty. Unmet edges are always reported regardless of mode.
type PrerequisiteValidation struct {
	Valid              bool               `json:"valid"`
	UnmetPrerequisites []PrerequisiteEdge `json:"unmetPrerequisites"`
	Warnings           []string           `json:"warnings,omitempty"`
	EnforcementMode    WorkflowMode       `json:"enforcementMode"`
}
