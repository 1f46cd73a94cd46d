package prereq

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/machshop/enforcement/pkg/enforcement"
)

// Validator walks the directed dependency graph between an operation and
// its prerequisite operations and reports which edges are unsatisfied.
// It implements enforcement.PrerequisiteValidator.
type Validator struct {
	operations   enforcement.OperationStore
	dependencies DependencyStore
	logger       zerolog.Logger
}

// NewValidator creates a prerequisite validator.
func NewValidator(operations enforcement.OperationStore, dependencies DependencyStore, logger zerolog.Logger) *Validator {
	return &Validator{
		operations:   operations,
		dependencies: dependencies,
		logger:       logger.With().Str("component", "prereq-validator").Logger(),
	}
}

// ValidatePrerequisites resolves each declared dependency edge of the
// operation's routing step to the concrete sibling operation instance in
// the same work order and checks that the prerequisite is satisfied.
//
// Every unmet edge is reported regardless of mode so the caller can render
// it. Under STRICT an unmet edge makes the validation invalid; modes that
// tolerate sequence bypass keep it valid and add a warning instead.
func (v *Validator) ValidatePrerequisites(ctx context.Context, workOrderID, operationID string, mode enforcement.WorkflowMode) (*enforcement.PrerequisiteValidation, error) {
	op, err := v.operations.GetOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op.WorkOrderID != workOrderID {
		return nil, enforcement.NewPermanentError(
			fmt.Sprintf("operation %s does not belong to work order %s", operationID, workOrderID), nil).
			WithCode(enforcement.ErrCodeValidation)
	}

	edges, err := v.dependencies.ListDependencies(ctx, op.RoutingStepID)
	if err != nil {
		return nil, err
	}

	result := &enforcement.PrerequisiteValidation{
		Valid:              true,
		UnmetPrerequisites: []enforcement.PrerequisiteEdge{},
		EnforcementMode:    mode,
	}
	if len(edges) == 0 {
		return result, nil
	}

	// Index the sibling operation instances of this work order by the
	// routing step they were instantiated from.
	siblings, err := v.operations.ListOperationsByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	byStep := make(map[string]*enforcement.Operation, len(siblings))
	for _, sibling := range siblings {
		byStep[sibling.RoutingStepID] = sibling
	}

	for _, edge := range edges {
		prereqOp, exists := byStep[edge.PrerequisiteRoutingStepID]
		if !exists {
			result.UnmetPrerequisites = append(result.UnmetPrerequisites, enforcement.PrerequisiteEdge{
				PrerequisiteOperationID: edge.PrerequisiteRoutingStepID,
				CurrentOperationSeq:     op.Sequence,
				DependencyType:          edge.Type,
				Reason:                  "No operation instance exists for the prerequisite routing step",
			})
			continue
		}

		if met, reason := edgeMet(edge.Type, prereqOp.Status); !met {
			result.UnmetPrerequisites = append(result.UnmetPrerequisites, enforcement.PrerequisiteEdge{
				PrerequisiteOperationID:   prereqOp.ID,
				PrerequisiteOperationName: prereqOp.Name,
				PrerequisiteOperationSeq:  prereqOp.Sequence,
				CurrentOperationSeq:       op.Sequence,
				DependencyType:            edge.Type,
				Reason:                    reason,
			})
		}
	}

	if n := len(result.UnmetPrerequisites); n > 0 {
		if mode.ToleratesSequenceBypass() {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%d prerequisite(s) not met, but allowed in %s mode", n, mode))
		} else {
			result.Valid = false
		}

		v.logger.Debug().
			Str("work_order_id", workOrderID).
			Str("operation_id", operationID).
			Int("unmet", n).
			Bool("valid", result.Valid).
			Msg("Prerequisite validation found unmet edges")
	}

	return result, nil
}

// edgeMet reports whether the prerequisite status satisfies the dependency
// type, and a human-readable reason when it does not.
func edgeMet(depType enforcement.DependencyType, status enforcement.OperationStatus) (bool, string) {
	switch depType {
	case enforcement.DependencyOverlap:
		if status == enforcement.OperationInProgress || status == enforcement.OperationCompleted {
			return true, ""
		}
		return false, fmt.Sprintf("Status is %s, must be at least %s", status, enforcement.OperationInProgress)
	default:
		if status == enforcement.OperationCompleted {
			return true, ""
		}
		return false, fmt.Sprintf("Status is %s, must be %s", status, enforcement.OperationCompleted)
	}
}
