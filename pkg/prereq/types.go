package prereq

import (
	"context"

	"github.com/machshop/enforcement/pkg/enforcement"
)

// DependencyEdge is one declared prerequisite relation between routing
// steps, as persisted in the routing/dependency store. The edge points at a
// prerequisite routing step, not at a work-order operation instance; the
// validator resolves the concrete sibling instance per work order.
type DependencyEdge struct {
	RoutingStepID             string                     `json:"routing_step_id"`
	PrerequisiteRoutingStepID string                     `json:"prerequisite_routing_step_id"`
	Type                      enforcement.DependencyType `json:"type"`
}

// DependencyStore fetches the declared prerequisite edges of a routing step.
type DependencyStore interface {
	// ListDependencies returns the edges whose dependent side is the given
	// routing step. An empty slice means the step has no prerequisites.
	ListDependencies(ctx context.Context, routingStepID string) ([]DependencyEdge, error)
}
