package prereq

import (
	"fmt"
	"sort"
	"strings"

	"github.com/machshop/enforcement/pkg/enforcement"
)

// RoutingStep is one step of a routing as seen by the graph builder.
type RoutingStep struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
}

// RoutingGraph is the validated dependency graph of a routing. Levels hold
// routing step IDs grouped by topological depth: steps at the same level
// have no ordering constraint between them.
type RoutingGraph struct {
	Nodes  map[string]*GraphNode `json:"nodes"`
	Edges  []DependencyEdge      `json:"edges"`
	Roots  []string              `json:"roots"`
	Levels [][]string            `json:"levels"`
}

// GraphNode is one routing step with its resolved neighbors.
type GraphNode struct {
	ID            string   `json:"id"`
	Level         int      `json:"level"`
	Prerequisites []string `json:"prerequisites"`
	Dependents    []string `json:"dependents"`
}

// GraphBuilder indexes routing steps and their declared prerequisite edges,
// validates that every edge target exists, detects dependency cycles, and
// computes topological levels.
type GraphBuilder struct {
	steps map[string]*RoutingStep

	// adjacency maps a step to the steps that depend on it.
	adjacency map[string][]string

	// reverseAdjacency maps a step to its prerequisites.
	reverseAdjacency map[string][]string

	inDegree map[string]int
	levels   [][]string
}

// NewGraphBuilder creates an empty graph builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		steps:            make(map[string]*RoutingStep),
		adjacency:        make(map[string][]string),
		reverseAdjacency: make(map[string][]string),
		inDegree:         make(map[string]int),
	}
}

// Build constructs the routing graph from steps and dependency edges.
func (b *GraphBuilder) Build(steps []RoutingStep, edges []DependencyEdge) (*RoutingGraph, error) {
	if err := b.initialize(steps, edges); err != nil {
		return nil, err
	}
	if err := b.detectCycles(); err != nil {
		return nil, err
	}
	if err := b.computeLevels(); err != nil {
		return nil, err
	}
	return b.buildGraph(edges), nil
}

func (b *GraphBuilder) initialize(steps []RoutingStep, edges []DependencyEdge) error {
	for i := range steps {
		step := &steps[i]
		if step.ID == "" {
			return enforcement.NewPermanentError("routing step has empty ID", nil).
				WithCode(enforcement.ErrCodeValidation)
		}
		if _, exists := b.steps[step.ID]; exists {
			return enforcement.NewPermanentError(fmt.Sprintf("duplicate routing step ID: %s", step.ID), nil).
				WithCode(enforcement.ErrCodeValidation)
		}
		b.steps[step.ID] = step
		b.adjacency[step.ID] = make([]string, 0)
		b.reverseAdjacency[step.ID] = make([]string, 0)
		b.inDegree[step.ID] = 0
	}

	for _, edge := range edges {
		if _, exists := b.steps[edge.RoutingStepID]; !exists {
			return enforcement.NewPermanentError(
				fmt.Sprintf("dependency references non-existent routing step %s", edge.RoutingStepID), nil).
				WithCode(enforcement.ErrCodeValidation)
		}
		if _, exists := b.steps[edge.PrerequisiteRoutingStepID]; !exists {
			return enforcement.NewPermanentError(
				fmt.Sprintf("routing step %s depends on non-existent step %s",
					edge.RoutingStepID, edge.PrerequisiteRoutingStepID), nil).
				WithCode(enforcement.ErrCodeValidation).WithEntity(edge.RoutingStepID)
		}

		// The prerequisite must complete before the dependent may start.
		b.adjacency[edge.PrerequisiteRoutingStepID] = append(b.adjacency[edge.PrerequisiteRoutingStepID], edge.RoutingStepID)
		b.reverseAdjacency[edge.RoutingStepID] = append(b.reverseAdjacency[edge.RoutingStepID], edge.PrerequisiteRoutingStepID)
		b.inDegree[edge.RoutingStepID]++
	}

	return nil
}

// detectCycles uses depth-first search to find circular dependencies.
func (b *GraphBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	for id := range b.steps {
		if !visited[id] {
			if cycle := b.visit(id, visited, recStack, path); cycle != nil {
				return enforcement.NewPermanentError(
					fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")), nil).
					WithCode(enforcement.ErrCodeValidation)
			}
		}
	}
	return nil
}

func (b *GraphBuilder) visit(nodeID string, visited, recStack map[string]bool, path []string) []string {
	visited[nodeID] = true
	recStack[nodeID] = true
	path = append(path, nodeID)

	for _, dependent := range b.adjacency[nodeID] {
		if !visited[dependent] {
			if cycle := b.visit(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dependent] {
			for i, id := range path {
				if id == dependent {
					return append(path[i:], dependent)
				}
			}
		}
	}

	recStack[nodeID] = false
	return nil
}

// computeLevels assigns topological levels with Kahn's algorithm.
func (b *GraphBuilder) computeLevels() error {
	inDegree := make(map[string]int, len(b.inDegree))
	for id, degree := range b.inDegree {
		inDegree[id] = degree
	}

	current := make([]string, 0)
	for id, degree := range inDegree {
		if degree == 0 {
			current = append(current, id)
		}
	}
	if len(current) == 0 && len(b.steps) > 0 {
		return enforcement.NewPermanentError("no root steps found - every step has prerequisites", nil).
			WithCode(enforcement.ErrCodeValidation)
	}

	processed := 0
	for len(current) > 0 {
		sort.Strings(current)
		b.levels = append(b.levels, current)
		processed += len(current)

		next := make([]string, 0)
		for _, nodeID := range current {
			for _, dependent := range b.adjacency[nodeID] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if processed != len(b.steps) {
		return enforcement.NewPermanentError("failed to process all routing steps - possible cycle", nil).
			WithCode(enforcement.ErrCodeInternal)
	}
	return nil
}

func (b *GraphBuilder) buildGraph(edges []DependencyEdge) *RoutingGraph {
	graph := &RoutingGraph{
		Nodes:  make(map[string]*GraphNode, len(b.steps)),
		Edges:  edges,
		Roots:  make([]string, 0),
		Levels: b.levels,
	}

	for level, stepIDs := range b.levels {
		for _, stepID := range stepIDs {
			graph.Nodes[stepID] = &GraphNode{
				ID:            stepID,
				Level:         level,
				Prerequisites: b.reverseAdjacency[stepID],
				Dependents:    b.adjacency[stepID],
			}
			if level == 0 {
				graph.Roots = append(graph.Roots, stepID)
			}
		}
	}

	return graph
}
