package prereq

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/machshop/enforcement/pkg/enforcement"
)

type fakeOperationStore struct {
	operations map[string]*enforcement.Operation
}

func (f *fakeOperationStore) GetOperation(_ context.Context, id string) (*enforcement.Operation, error) {
	op, ok := f.operations[id]
	if !ok {
		return nil, enforcement.NewNotFoundError("operation not found: "+id, id)
	}
	return op, nil
}

func (f *fakeOperationStore) ListOperationsByWorkOrder(_ context.Context, workOrderID string) ([]*enforcement.Operation, error) {
	ops := []*enforcement.Operation{}
	for _, op := range f.operations {
		if op.WorkOrderID == workOrderID {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

type fakeDependencyStore struct {
	edges map[string][]DependencyEdge
}

func (f *fakeDependencyStore) ListDependencies(_ context.Context, routingStepID string) ([]DependencyEdge, error) {
	return f.edges[routingStepID], nil
}

func newTestValidator(ops *fakeOperationStore, deps *fakeDependencyStore) *Validator {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewValidator(ops, deps, logger)
}

func threeStepFixture(prereqStatus enforcement.OperationStatus) (*fakeOperationStore, *fakeDependencyStore) {
	ops := &fakeOperationStore{operations: map[string]*enforcement.Operation{
		"op-saw":    {ID: "op-saw", WorkOrderID: "wo-1", RoutingStepID: "step-saw", Name: "Saw", Sequence: 10, Status: prereqStatus},
		"op-mill":   {ID: "op-mill", WorkOrderID: "wo-1", RoutingStepID: "step-mill", Name: "Mill", Sequence: 20, Status: enforcement.OperationCreated},
		"op-deburr": {ID: "op-deburr", WorkOrderID: "wo-1", RoutingStepID: "step-deburr", Name: "Deburr", Sequence: 30, Status: enforcement.OperationCreated},
	}}
	deps := &fakeDependencyStore{edges: map[string][]DependencyEdge{
		"step-mill": {{
			RoutingStepID:             "step-mill",
			PrerequisiteRoutingStepID: "step-saw",
			Type:                      enforcement.DependencySequential,
		}},
	}}
	return ops, deps
}

func TestValidatePrerequisitesNoEdges(t *testing.T) {
	ops, deps := threeStepFixture(enforcement.OperationCreated)
	v := newTestValidator(ops, deps)

	result, err := v.ValidatePrerequisites(context.Background(), "wo-1", "op-deburr", enforcement.WorkflowStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid || len(result.UnmetPrerequisites) != 0 {
		t.Errorf("expected valid with no unmet edges, got %+v", result)
	}
}

func TestValidatePrerequisitesSequential(t *testing.T) {
	tests := []struct {
		name         string
		prereqStatus enforcement.OperationStatus
		wantMet      bool
	}{
		{"created is unmet", enforcement.OperationCreated, false},
		{"in progress is unmet", enforcement.OperationInProgress, false},
		{"completed is met", enforcement.OperationCompleted, true},
		{"skipped is unmet", enforcement.OperationSkipped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, deps := threeStepFixture(tt.prereqStatus)
			v := newTestValidator(ops, deps)

			result, err := v.ValidatePrerequisites(context.Background(), "wo-1", "op-mill", enforcement.WorkflowStrict)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantMet {
				if !result.Valid || len(result.UnmetPrerequisites) != 0 {
					t.Errorf("expected met, got %+v", result)
				}
				return
			}

			if result.Valid {
				t.Errorf("expected invalid under STRICT, got %+v", result)
			}
			if len(result.UnmetPrerequisites) != 1 {
				t.Fatalf("expected one unmet edge, got %+v", result.UnmetPrerequisites)
			}
			edge := result.UnmetPrerequisites[0]
			if edge.PrerequisiteOperationID != "op-saw" || edge.PrerequisiteOperationName != "Saw" {
				t.Errorf("unmet edge should reference the concrete sibling instance, got %+v", edge)
			}
			if !strings.Contains(edge.Reason, "must be COMPLETED") {
				t.Errorf("unexpected reason %q", edge.Reason)
			}
		})
	}
}

func TestValidatePrerequisitesOverlap(t *testing.T) {
	tests := []struct {
		name         string
		prereqStatus enforcement.OperationStatus
		wantMet      bool
	}{
		{"created is unmet", enforcement.OperationCreated, false},
		{"in progress satisfies overlap", enforcement.OperationInProgress, true},
		{"completed satisfies overlap", enforcement.OperationCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, deps := threeStepFixture(tt.prereqStatus)
			deps.edges["step-mill"][0].Type = enforcement.DependencyOverlap
			v := newTestValidator(ops, deps)

			result, err := v.ValidatePrerequisites(context.Background(), "wo-1", "op-mill", enforcement.WorkflowStrict)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantMet != (len(result.UnmetPrerequisites) == 0) {
				t.Errorf("expected met=%v, got %+v", tt.wantMet, result)
			}
			if !tt.wantMet && !strings.Contains(result.UnmetPrerequisites[0].Reason, "at least IN_PROGRESS") {
				t.Errorf("unexpected reason %q", result.UnmetPrerequisites[0].Reason)
			}
		})
	}
}

func TestValidatePrerequisitesModes(t *testing.T) {
	// Unmet edges are reported in every mode; only validity changes.
	tests := []struct {
		mode      enforcement.WorkflowMode
		wantValid bool
	}{
		{enforcement.WorkflowStrict, false},
		{enforcement.WorkflowFlexible, true},
		{enforcement.WorkflowHybrid, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			ops, deps := threeStepFixture(enforcement.OperationCreated)
			v := newTestValidator(ops, deps)

			result, err := v.ValidatePrerequisites(context.Background(), "wo-1", "op-mill", tt.mode)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.Valid != tt.wantValid {
				t.Errorf("mode %s: expected valid=%v, got %+v", tt.mode, tt.wantValid, result)
			}
			if len(result.UnmetPrerequisites) != 1 {
				t.Errorf("mode %s: unmet edges must be reported regardless of mode, got %+v", tt.mode, result.UnmetPrerequisites)
			}
			if tt.wantValid && len(result.Warnings) == 0 {
				t.Errorf("mode %s: expected a warning when tolerating unmet edges", tt.mode)
			}
		})
	}
}

func TestValidatePrerequisitesMissingSibling(t *testing.T) {
	// The dependency points at a routing step with no instantiated
	// operation in this work order.
	ops := &fakeOperationStore{operations: map[string]*enforcement.Operation{
		"op-mill": {ID: "op-mill", WorkOrderID: "wo-1", RoutingStepID: "step-mill", Name: "Mill", Sequence: 20, Status: enforcement.OperationCreated},
	}}
	deps := &fakeDependencyStore{edges: map[string][]DependencyEdge{
		"step-mill": {{
			RoutingStepID:             "step-mill",
			PrerequisiteRoutingStepID: "step-saw",
			Type:                      enforcement.DependencySequential,
		}},
	}}
	v := newTestValidator(ops, deps)

	result, err := v.ValidatePrerequisites(context.Background(), "wo-1", "op-mill", enforcement.WorkflowStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Errorf("expected invalid, got %+v", result)
	}
	if len(result.UnmetPrerequisites) != 1 ||
		!strings.Contains(result.UnmetPrerequisites[0].Reason, "No operation instance exists") {
		t.Errorf("unexpected unmet edges %+v", result.UnmetPrerequisites)
	}
}

func TestValidatePrerequisitesWrongWorkOrder(t *testing.T) {
	ops, deps := threeStepFixture(enforcement.OperationCompleted)
	v := newTestValidator(ops, deps)

	if _, err := v.ValidatePrerequisites(context.Background(), "wo-other", "op-mill", enforcement.WorkflowStrict); err == nil {
		t.Fatal("expected error for operation outside the work order")
	}
}
