package enforcement

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

// fakeConfigStore serves override rows from in-memory maps keyed by scope.
type fakeConfigStore struct {
	workflow map[string]*WorkflowOverride
	quality  map[string]*QualityOverride
}

func scopeKey(level ScopeLevel, id string) string {
	return string(level) + "/" + id
}

func (f *fakeConfigStore) GetWorkflowOverride(_ context.Context, level ScopeLevel, id string) (*WorkflowOverride, error) {
	return f.workflow[scopeKey(level, id)], nil
}

func (f *fakeConfigStore) GetQualityOverride(_ context.Context, level ScopeLevel, id string) (*QualityOverride, error) {
	return f.quality[scopeKey(level, id)], nil
}

func wfMode(m WorkflowMode) *WorkflowMode { return &m }
func qMode(m QualityMode) *QualityMode    { return &m }
func boolPtr(b bool) *bool                { return &b }

func newTestResolver(store ConfigStore) *StoreResolver {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewStoreResolver(store, logger)
}

func TestResolveWorkflowDefaults(t *testing.T) {
	resolver := newTestResolver(&fakeConfigStore{})

	cfg, err := resolver.ResolveWorkflow(context.Background(), Scope{SiteID: "site-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mode != WorkflowStrict {
		t.Errorf("expected default mode STRICT, got %s", cfg.Mode)
	}
	if !cfg.EnforceStatusGating || !cfg.EnforceOperationSequence || !cfg.EnforceQualityChecks {
		t.Errorf("expected all enforcement flags on by default, got %+v", cfg)
	}
	if cfg.Source != (Provenance{}) {
		t.Errorf("expected empty provenance, got %+v", cfg.Source)
	}
}

func TestResolveWorkflowRequiresSite(t *testing.T) {
	resolver := newTestResolver(&fakeConfigStore{})

	if _, err := resolver.ResolveWorkflow(context.Background(), Scope{}); err == nil {
		t.Fatal("expected error for missing site id")
	}
	if _, err := resolver.ResolveQuality(context.Background(), Scope{}); err == nil {
		t.Fatal("expected error for missing site id")
	}
}

func TestResolveWorkflowFieldWiseMerge(t *testing.T) {
	// Site turns everything off; work order turns sequencing back on; the
	// operation only changes the mode. Each field takes the most specific
	// non-nil value independently.
	store := &fakeConfigStore{
		workflow: map[string]*WorkflowOverride{
			scopeKey(ScopeSite, "site-1"): {
				Mode:                     wfMode(WorkflowFlexible),
				EnforceStatusGating:      boolPtr(false),
				EnforceOperationSequence: boolPtr(false),
				EnforceQualityChecks:     boolPtr(false),
			},
			scopeKey(ScopeWorkOrder, "wo-1"): {
				EnforceOperationSequence: boolPtr(true),
			},
			scopeKey(ScopeOperation, "op-1"): {
				Mode: wfMode(WorkflowHybrid),
			},
		},
	}
	resolver := newTestResolver(store)

	cfg, err := resolver.ResolveWorkflow(context.Background(), Scope{
		SiteID:      "site-1",
		WorkOrderID: "wo-1",
		OperationID: "op-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mode != WorkflowHybrid {
		t.Errorf("expected operation-level mode HYBRID to win, got %s", cfg.Mode)
	}
	if cfg.EnforceStatusGating {
		t.Error("expected site-level EnforceStatusGating=false to apply")
	}
	if !cfg.EnforceOperationSequence {
		t.Error("expected work-order-level EnforceOperationSequence=true to win over site")
	}
	if cfg.EnforceQualityChecks {
		t.Error("expected site-level EnforceQualityChecks=false to apply")
	}

	want := Provenance{Site: true, WorkOrder: true, Operation: true}
	if cfg.Source != want {
		t.Errorf("expected provenance %+v, got %+v", want, cfg.Source)
	}
}

func TestResolveWorkflowMoreSpecificWins(t *testing.T) {
	store := &fakeConfigStore{
		workflow: map[string]*WorkflowOverride{
			scopeKey(ScopeSite, "site-1"):    {Mode: wfMode(WorkflowStrict)},
			scopeKey(ScopeRouting, "rt-1"):   {Mode: wfMode(WorkflowFlexible)},
			scopeKey(ScopeWorkOrder, "wo-1"): {Mode: wfMode(WorkflowHybrid)},
		},
	}
	resolver := newTestResolver(store)

	tests := []struct {
		name  string
		scope Scope
		want  WorkflowMode
	}{
		{"site only", Scope{SiteID: "site-1"}, WorkflowStrict},
		{"routing wins over site", Scope{SiteID: "site-1", RoutingID: "rt-1"}, WorkflowFlexible},
		{"work order wins over routing", Scope{SiteID: "site-1", RoutingID: "rt-1", WorkOrderID: "wo-1"}, WorkflowHybrid},
		{"unknown ids fall through", Scope{SiteID: "site-1", RoutingID: "rt-x", WorkOrderID: "wo-x"}, WorkflowStrict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := resolver.ResolveWorkflow(context.Background(), tt.scope)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Mode != tt.want {
				t.Errorf("expected mode %s, got %s", tt.want, cfg.Mode)
			}
		})
	}
}

func TestResolveQualityDefaults(t *testing.T) {
	resolver := newTestResolver(&fakeConfigStore{})

	cfg, err := resolver.ResolveQuality(context.Background(), Scope{SiteID: "site-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mode != QualityStrict {
		t.Errorf("expected default mode STRICT, got %s", cfg.Mode)
	}
	if !cfg.EnforceInspectionPass {
		t.Error("expected EnforceInspectionPass on by default")
	}
	if cfg.RequireElectronicSig || cfg.AcceptExternalQuality {
		t.Errorf("expected signature and external-quality flags off by default, got %+v", cfg)
	}
	if !cfg.QualityRequired || cfg.RequiredSource != ScopeSystem {
		t.Errorf("expected QualityRequired=true from SYSTEM, got %v from %s", cfg.QualityRequired, cfg.RequiredSource)
	}
}

func TestResolveQualityOperationExemption(t *testing.T) {
	// A strict site mode does not erase an operation-level exemption: the
	// operation scope is more specific, so its QualityRequired=false wins.
	store := &fakeConfigStore{
		quality: map[string]*QualityOverride{
			scopeKey(ScopeSite, "site-1"): {
				Mode:            qMode(QualityStrict),
				QualityRequired: boolPtr(true),
			},
			scopeKey(ScopeOperation, "op-1"): {
				QualityRequired: boolPtr(false),
			},
		},
	}
	resolver := newTestResolver(store)

	cfg, err := resolver.ResolveQuality(context.Background(), Scope{
		SiteID:      "site-1",
		OperationID: "op-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.QualityRequired {
		t.Error("expected operation-level exemption to win over site")
	}
	if cfg.RequiredSource != ScopeOperation {
		t.Errorf("expected RequiredSource OPERATION, got %s", cfg.RequiredSource)
	}
	if cfg.Mode != QualityStrict {
		t.Errorf("expected site mode STRICT to survive, got %s", cfg.Mode)
	}
}

func TestResolveQualityFieldWiseMerge(t *testing.T) {
	store := &fakeConfigStore{
		quality: map[string]*QualityOverride{
			scopeKey(ScopeSite, "site-1"): {
				Mode:                  qMode(QualityRecommended),
				EnforceInspectionPass: boolPtr(false),
				RequireElectronicSig:  boolPtr(true),
			},
			scopeKey(ScopeWorkOrder, "wo-1"): {
				EnforceInspectionPass: boolPtr(true),
				AcceptExternalQuality: boolPtr(true),
			},
		},
	}
	resolver := newTestResolver(store)

	cfg, err := resolver.ResolveQuality(context.Background(), Scope{
		SiteID:      "site-1",
		WorkOrderID: "wo-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mode != QualityRecommended {
		t.Errorf("expected site mode RECOMMENDED, got %s", cfg.Mode)
	}
	if !cfg.EnforceInspectionPass {
		t.Error("expected work-order EnforceInspectionPass=true to win over site")
	}
	if !cfg.RequireElectronicSig {
		t.Error("expected site RequireElectronicSig=true to apply")
	}
	if !cfg.AcceptExternalQuality {
		t.Error("expected work-order AcceptExternalQuality=true to apply")
	}
}
