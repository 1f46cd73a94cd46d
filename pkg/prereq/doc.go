// Package prereq validates operation prerequisites against the routing
// dependency graph. It resolves declared routing-step dependency edges to
// concrete work-order operation instances, reports every unmet edge, and
// provides a graph builder with cycle detection and topological leveling
// for rendering or scheduling a routing.
package prereq
