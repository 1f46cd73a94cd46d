// Package quality implements the quality gate: inspection requirements,
// inspection-pass enforcement on operation completion, electronic-signature
// requirements, and nonconformance disposition legality. Administered rules
// can be served from the persistence layer or from a hot-reloaded YAML file.
package quality
