package enforcement

import (
	"context"

	"github.com/rs/zerolog"
)

// System defaults applied when no scope defines a value for a field.
const (
	defaultWorkflowMode = WorkflowStrict
	defaultQualityMode  = QualityStrict
)

// StoreResolver resolves effective configurations by merging partial
// override rows fetched from a ConfigStore. Resolution is a pure
// read-and-merge with no side effects.
type StoreResolver struct {
	store  ConfigStore
	logger zerolog.Logger
}

// NewStoreResolver creates a resolver backed by the given config store.
func NewStoreResolver(store ConfigStore, logger zerolog.Logger) *StoreResolver {
	return &StoreResolver{
		store:  store,
		logger: logger.With().Str("component", "config-resolver").Logger(),
	}
}

// scopeRef pairs a scope level with the identifier to query at that level.
type scopeRef struct {
	level ScopeLevel
	id    string
}

// orderedScopes returns the scope references to query, most specific first.
// Absent identifiers are skipped; absence means "defer to the next scope".
func orderedScopes(scope Scope) []scopeRef {
	refs := make([]scopeRef, 0, 4)
	if scope.OperationID != "" {
		refs = append(refs, scopeRef{ScopeOperation, scope.OperationID})
	}
	if scope.WorkOrderID != "" {
		refs = append(refs, scopeRef{ScopeWorkOrder, scope.WorkOrderID})
	}
	if scope.RoutingID != "" {
		refs = append(refs, scopeRef{ScopeRouting, scope.RoutingID})
	}
	if scope.SiteID != "" {
		refs = append(refs, scopeRef{ScopeSite, scope.SiteID})
	}
	return refs
}

// ResolveWorkflow merges workflow override rows for the given scope into an
// effective workflow configuration. Each field independently takes the most
// specific non-nil value; fields no scope defines fall back to the system
// defaults (mode STRICT, every enforcement flag on).
func (r *StoreResolver) ResolveWorkflow(ctx context.Context, scope Scope) (*WorkflowConfig, error) {
	if scope.SiteID == "" {
		return nil, NewPermanentError("scope requires a site id", nil).WithCode(ErrCodeValidation)
	}

	cfg := &WorkflowConfig{
		Mode:                     defaultWorkflowMode,
		EnforceStatusGating:      true,
		EnforceOperationSequence: true,
		EnforceQualityChecks:     true,
	}

	modeSet, gatingSet, sequenceSet, qualitySet := false, false, false, false

	for _, ref := range orderedScopes(scope) {
		ov, err := r.store.GetWorkflowOverride(ctx, ref.level, ref.id)
		if err != nil {
			return nil, err
		}
		if ov == nil {
			continue
		}

		contributed := false
		if !modeSet && ov.Mode != nil {
			cfg.Mode = *ov.Mode
			modeSet = true
			contributed = true
		}
		if !gatingSet && ov.EnforceStatusGating != nil {
			cfg.EnforceStatusGating = *ov.EnforceStatusGating
			gatingSet = true
			contributed = true
		}
		if !sequenceSet && ov.EnforceOperationSequence != nil {
			cfg.EnforceOperationSequence = *ov.EnforceOperationSequence
			sequenceSet = true
			contributed = true
		}
		if !qualitySet && ov.EnforceQualityChecks != nil {
			cfg.EnforceQualityChecks = *ov.EnforceQualityChecks
			qualitySet = true
			contributed = true
		}
		if contributed {
			markProvenance(&cfg.Source, ref.level)
		}
	}

	r.logger.Debug().
		Str("site_id", scope.SiteID).
		Str("mode", string(cfg.Mode)).
		Msg("Workflow configuration resolved")

	return cfg, nil
}

// ResolveQuality merges quality override rows for the given scope. An
// operation-level QualityRequired=false always wins: the operation scope is
// the most specific, so the first-non-nil reducer preserves the exemption
// regardless of what stricter scopes define.
func (r *StoreResolver) ResolveQuality(ctx context.Context, scope Scope) (*QualityConfig, error) {
	if scope.SiteID == "" {
		return nil, NewPermanentError("scope requires a site id", nil).WithCode(ErrCodeValidation)
	}

	cfg := &QualityConfig{
		Mode:                  defaultQualityMode,
		EnforceInspectionPass: true,
		QualityRequired:       true,
		RequiredSource:        ScopeSystem,
	}

	modeSet, passSet, sigSet, extSet, requiredSet := false, false, false, false, false

	for _, ref := range orderedScopes(scope) {
		ov, err := r.store.GetQualityOverride(ctx, ref.level, ref.id)
		if err != nil {
			return nil, err
		}
		if ov == nil {
			continue
		}

		contributed := false
		if !modeSet && ov.Mode != nil {
			cfg.Mode = *ov.Mode
			modeSet = true
			contributed = true
		}
		if !passSet && ov.EnforceInspectionPass != nil {
			cfg.EnforceInspectionPass = *ov.EnforceInspectionPass
			passSet = true
			contributed = true
		}
		if !sigSet && ov.RequireElectronicSig != nil {
			cfg.RequireElectronicSig = *ov.RequireElectronicSig
			sigSet = true
			contributed = true
		}
		if !extSet && ov.AcceptExternalQuality != nil {
			cfg.AcceptExternalQuality = *ov.AcceptExternalQuality
			extSet = true
			contributed = true
		}
		if !requiredSet && ov.QualityRequired != nil {
			cfg.QualityRequired = *ov.QualityRequired
			cfg.RequiredSource = ref.level
			requiredSet = true
			contributed = true
		}
		if contributed {
			markProvenance(&cfg.Source, ref.level)
		}
	}

	r.logger.Debug().
		Str("site_id", scope.SiteID).
		Str("mode", string(cfg.Mode)).
		Bool("quality_required", cfg.QualityRequired).
		Msg("Quality configuration resolved")

	return cfg, nil
}

func markProvenance(p *Provenance, level ScopeLevel) {
	switch level {
	case ScopeSite:
		p.Site = true
	case ScopeRouting:
		p.Routing = true
	case ScopeWorkOrder:
		p.WorkOrder = true
	case ScopeOperation:
		p.Operation = true
	}
}
