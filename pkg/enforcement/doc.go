// Package enforcement implements the workflow enforcement core for the
// MachShop manufacturing execution backend: mode-sensitive decision
// combinators over work-order and operation state transitions.
//
// The package defines the configuration override hierarchy
// (site -> routing -> work order -> operation), the field-wise resolver
// that merges it into one effective configuration per decision, and the
// decision engine that answers whether performance may be recorded and
// whether operations may start or complete.
//
// Decisions never fail for expected business conditions. A missing work
// order, an unmet prerequisite, or a failed inspection is reported inside
// the returned Decision; only collaborator failures surface as errors, so
// callers can choose their own fail-open or fail-closed policy at that
// boundary.
package enforcement
