package enforcement

import "context"

// WorkOrderStore fetches work orders by ID. Implementations return an
// error with code NOT_FOUND (see NewNotFoundError) when no work order
// exists; decision operations translate that into a rejection.
type WorkOrderStore interface {
	GetWorkOrder(ctx context.Context, id string) (*WorkOrder, error)
}

// OperationStore fetches work-order operation instances.
type OperationStore interface {
	// GetOperation fetches a single operation instance by ID.
	GetOperation(ctx context.Context, id string) (*Operation, error)

	// ListOperationsByWorkOrder returns every operation instance of a work
	// order, ordered by sequence. Used to resolve prerequisite routing
	// steps to their concrete sibling instances.
	ListOperationsByWorkOrder(ctx context.Context, workOrderID string) ([]*Operation, error)
}

// ConfigStore fetches partial configuration override rows by scope level.
// A (nil, nil) return means no override row exists at that scope, which is
// not an error; resolution defers to the next-higher scope.
type ConfigStore interface {
	GetWorkflowOverride(ctx context.Context, level ScopeLevel, id string) (*WorkflowOverride, error)
	GetQualityOverride(ctx context.Context, level ScopeLevel, id string) (*QualityOverride, error)
}

// Resolver merges the layered override hierarchy into one effective
// configuration per decision request. It is injectable so tests can
// substitute a fixed configuration for the decision engines.
type Resolver interface {
	ResolveWorkflow(ctx context.Context, scope Scope) (*WorkflowConfig, error)
	ResolveQuality(ctx context.Context, scope Scope) (*QualityConfig, error)
}

// PrerequisiteValidator walks the dependency graph between an operation and
// its prerequisite operations. Implemented by pkg/prereq.
type PrerequisiteValidator interface {
	ValidatePrerequisites(ctx context.Context, workOrderID, operationID string, mode WorkflowMode) (*PrerequisiteValidation, error)
}

// QualityGate answers quality-specific enforcement questions. Implemented
// by pkg/quality. The decision engine consults it when completing an
// operation under EnforceQualityChecks.
type QualityGate interface {
	CanCompleteWithoutPassingInspection(ctx context.Context, operationID string) (*Decision, error)
}
