package quality

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/machshop/enforcement/pkg/enforcement"
)

type fakeWorkOrderStore struct {
	workOrders map[string]*enforcement.WorkOrder
}

func (f *fakeWorkOrderStore) GetWorkOrder(_ context.Context, id string) (*enforcement.WorkOrder, error) {
	wo, ok := f.workOrders[id]
	if !ok {
		return nil, enforcement.NewNotFoundError("work order not found: "+id, id)
	}
	return wo, nil
}

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

type fixedResolver struct {
	quality enforcement.QualityConfig
}

func (f *fixedResolver) ResolveWorkflow(_ context.Context, _ enforcement.Scope) (*enforcement.WorkflowConfig, error) {
	cfg := enforcement.WorkflowConfig{Mode: enforcement.WorkflowStrict}
	return &cfg, nil
}

func (f *fixedResolver) ResolveQuality(_ context.Context, _ enforcement.Scope) (*enforcement.QualityConfig, error) {
	cfg := f.quality
	return &cfg, nil
}

type fakeInspectionStore struct {
	latest map[string]*Inspection
}

func (f *fakeInspectionStore) GetLatestInspection(_ context.Context, operationID string) (*Inspection, error) {
	return f.latest[operationID], nil
}

type fakeNCRStore struct {
	ncrs map[string]*NCR
}

func (f *fakeNCRStore) GetNCR(_ context.Context, id string) (*NCR, error) {
	ncr, ok := f.ncrs[id]
	if !ok {
		return nil, enforcement.NewNotFoundError("NCR not found: "+id, id)
	}
	return ncr, nil
}

type fakeRuleSource struct {
	rules      map[Severity]*DispositionRule
	signatures map[string]*SignatureRequirement
}

func (f *fakeRuleSource) GetDispositionRule(_ context.Context, severity Severity) (*DispositionRule, error) {
	return f.rules[severity], nil
}

func (f *fakeRuleSource) GetSignatureRequirement(_ context.Context, actionType, siteID string) (*SignatureRequirement, error) {
	return f.signatures[actionType+"/"+siteID], nil
}

type gateFixture struct {
	gate        *Gate
	resolver    *fixedResolver
	inspections *fakeInspectionStore
	ncrs        *fakeNCRStore
	rules       *fakeRuleSource
}

func newGateFixture() *gateFixture {
	f := &gateFixture{
		resolver: &fixedResolver{quality: enforcement.QualityConfig{
			Mode:                  enforcement.QualityStrict,
			EnforceInspectionPass: true,
			QualityRequired:       true,
			RequiredSource:        enforcement.ScopeSystem,
		}},
		inspections: &fakeInspectionStore{latest: map[string]*Inspection{}},
		ncrs:        &fakeNCRStore{ncrs: map[string]*NCR{}},
		rules: &fakeRuleSource{
			rules:      map[Severity]*DispositionRule{},
			signatures: map[string]*SignatureRequirement{},
		},
	}

	workOrders := &fakeWorkOrderStore{workOrders: map[string]*enforcement.WorkOrder{
		"wo-1": {ID: "wo-1", SiteID: "site-1", RoutingID: "rt-1", Status: enforcement.WorkOrderInProgress},
	}}
	operations := &fakeOperationStore{operations: map[string]*enforcement.Operation{
		"op-1": {ID: "op-1", WorkOrderID: "wo-1", RoutingStepID: "step-1", Name: "Inspect", Sequence: 10, Status: enforcement.OperationInProgress},
	}}

	f.gate = NewGate(GateDeps{
		WorkOrders:       workOrders,
		Operations:       operations,
		Resolver:         f.resolver,
		Inspections:      f.inspections,
		NCRs:             f.ncrs,
		DispositionRules: f.rules,
		Signatures:       f.rules,
		Logger:           zerolog.New(nil).Level(zerolog.Disabled),
	})

	return f
}

func TestIsInspectionRequired(t *testing.T) {
	tests := []struct {
		name         string
		mode         enforcement.QualityMode
		required     bool
		source       enforcement.ScopeLevel
		wantRequired bool
		wantReason   string
	}{
		{"strict and required", enforcement.QualityStrict, true, enforcement.ScopeSystem, true, "required in STRICT mode"},
		{"strict but not required", enforcement.QualityStrict, false, enforcement.ScopeSite, false, "not required"},
		{"recommended never requires", enforcement.QualityRecommended, true, enforcement.ScopeSystem, false, "recommended"},
		{"optional never requires", enforcement.QualityOptional, true, enforcement.ScopeSystem, false, "optional"},
		{"external never requires", enforcement.QualityExternal, true, enforcement.ScopeSystem, false, "external system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture()
			f.resolver.quality.Mode = tt.mode
			f.resolver.quality.QualityRequired = tt.required
			f.resolver.quality.RequiredSource = tt.source

			req, err := f.gate.IsInspectionRequired(context.Background(), "op-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Required != tt.wantRequired {
				t.Errorf("expected required=%v, got %+v", tt.wantRequired, req)
			}
			if !strings.Contains(req.Reason, tt.wantReason) {
				t.Errorf("expected reason containing %q, got %q", tt.wantReason, req.Reason)
			}
		})
	}
}

func TestIsInspectionRequiredUnknownOperation(t *testing.T) {
	f := newGateFixture()

	req, err := f.gate.IsInspectionRequired(context.Background(), "op-missing")
	if err != nil {
		t.Fatalf("missing operation must produce a requirement answer, not fail: %v", err)
	}
	if req.Required {
		t.Errorf("expected not required, got %+v", req)
	}
	if !strings.Contains(req.Reason, "operation op-missing not found") {
		t.Errorf("unexpected reason %q", req.Reason)
	}
}

func TestIsInspectionRequiredOperationExemption(t *testing.T) {
	f := newGateFixture()
	f.resolver.quality.QualityRequired = false
	f.resolver.quality.RequiredSource = enforcement.ScopeOperation

	req, err := f.gate.IsInspectionRequired(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Required {
		t.Errorf("expected exemption, got %+v", req)
	}
	if req.Source != enforcement.ScopeOperation {
		t.Errorf("expected OPERATION source, got %s", req.Source)
	}
	if !strings.Contains(req.Reason, "exempted at the operation level") {
		t.Errorf("unexpected reason %q", req.Reason)
	}
}

func TestCanCompleteWithoutPassingInspection(t *testing.T) {
	passed := &Inspection{ID: "insp-1", OperationID: "op-1", Result: InspectionPass}
	failed := &Inspection{ID: "insp-2", OperationID: "op-1", Result: InspectionFail}

	tests := []struct {
		name         string
		enforce      bool
		inspection   *Inspection
		wantAllowed  bool
		wantBypasses int
		wantReason   string
	}{
		{"enforced with pass", true, passed, true, 0, ""},
		{"enforced with fail", true, failed, false, 0, "failed"},
		{"enforced with no inspection", true, nil, false, 0, "not performed"},
		{"unenforced with pass", false, passed, true, 0, ""},
		{"unenforced with fail", false, failed, true, 1, ""},
		{"unenforced with no inspection", false, nil, true, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture()
			f.resolver.quality.EnforceInspectionPass = tt.enforce
			if tt.inspection != nil {
				f.inspections.latest["op-1"] = tt.inspection
			}

			d, err := f.gate.CanCompleteWithoutPassingInspection(context.Background(), "op-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if d.Allowed != tt.wantAllowed {
				t.Errorf("expected allowed=%v, got %+v", tt.wantAllowed, d)
			}
			if tt.wantReason != "" && !strings.Contains(d.Reason, tt.wantReason) {
				t.Errorf("expected reason containing %q, got %q", tt.wantReason, d.Reason)
			}
			if len(d.BypassesApplied) != tt.wantBypasses {
				t.Errorf("expected %d bypasses, got %v", tt.wantBypasses, d.BypassesApplied)
			}
			if !d.Allowed && len(d.BypassesApplied) > 0 {
				t.Errorf("rejection carries bypasses: %+v", d)
			}
			if tt.wantBypasses > 0 {
				if d.BypassesApplied[0] != enforcement.BypassQualityPass {
					t.Errorf("expected quality_pass_requirement bypass, got %v", d.BypassesApplied)
				}
				if len(d.Warnings) == 0 {
					t.Error("expected a warning alongside the bypass")
				}
			}
		})
	}
}

func TestCanCompleteWithoutPassingInspectionUnknownOperation(t *testing.T) {
	f := newGateFixture()

	d, err := f.gate.CanCompleteWithoutPassingInspection(context.Background(), "op-missing")
	if err != nil {
		t.Fatalf("missing operation must produce a rejection, not fail: %v", err)
	}
	if d.Allowed {
		t.Errorf("expected rejection, got %+v", d)
	}
	if !strings.Contains(d.Reason, "operation op-missing not found") {
		t.Errorf("unexpected reason %q", d.Reason)
	}
	if len(d.BypassesApplied) != 0 {
		t.Errorf("rejection carries bypasses: %+v", d)
	}
}

func TestCanCompleteWithoutPassingInspectionExternal(t *testing.T) {
	// EXTERNAL mode accepts quality from an outside system even with no
	// local inspection on file.
	f := newGateFixture()
	f.resolver.quality.Mode = enforcement.QualityExternal
	f.resolver.quality.AcceptExternalQuality = true

	d, err := f.gate.CanCompleteWithoutPassingInspection(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected allow in EXTERNAL mode, got %+v", d)
	}
	if len(d.BypassesApplied) != 0 {
		t.Errorf("EXTERNAL mode is not a bypass, got %v", d.BypassesApplied)
	}
}

func TestIsElectronicSignatureRequired(t *testing.T) {
	f := newGateFixture()
	f.rules.signatures["complete_operation/site-1"] = &SignatureRequirement{
		ActionType: "complete_operation", SiteID: "site-1", RequiresSignature: true, SignatureLevel: "supervisor",
	}
	f.rules.signatures["ncr_disposition/"] = &SignatureRequirement{
		ActionType: "ncr_disposition", RequiresSignature: true, SignatureLevel: "quality_engineer",
	}

	tests := []struct {
		name         string
		actionType   string
		siteID       string
		wantRequired bool
		wantLevel    string
	}{
		{"site-specific row", "complete_operation", "site-1", true, "supervisor"},
		{"no row for other site", "complete_operation", "site-2", false, ""},
		{"global fallback", "ncr_disposition", "site-1", true, "quality_engineer"},
		{"unknown action", "delete_work_order", "site-1", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.gate.IsElectronicSignatureRequired(context.Background(), tt.actionType, tt.siteID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Required != tt.wantRequired || d.SignatureLevel != tt.wantLevel {
				t.Errorf("expected required=%v level=%q, got %+v", tt.wantRequired, tt.wantLevel, d)
			}
		})
	}
}

func TestValidateNCRDisposition(t *testing.T) {
	f := newGateFixture()
	f.ncrs.ncrs["ncr-minor"] = &NCR{ID: "ncr-minor", Number: "NCR-001", SiteID: "site-1", Severity: SeverityMinor}
	f.ncrs.ncrs["ncr-critical"] = &NCR{ID: "ncr-critical", Number: "NCR-002", SiteID: "site-1", Severity: SeverityCritical}
	f.rules.rules[SeverityMinor] = &DispositionRule{
		Severity:            SeverityMinor,
		AllowedDispositions: []Disposition{DispositionUseAsIs, DispositionRework},
		RequiresApproval:    true,
		ApprovalLevel:       "quality_engineer",
	}

	tests := []struct {
		name         string
		ncrID        string
		proposed     Disposition
		wantValid    bool
		wantApproval bool
	}{
		{"rule allows", "ncr-minor", DispositionRework, true, true},
		{"rule rejects", "ncr-minor", DispositionScrap, false, true},
		{"default rejects critical use-as-is", "ncr-critical", DispositionUseAsIs, false, false},
		{"default allows critical scrap", "ncr-critical", DispositionScrap, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.gate.ValidateNCRDisposition(context.Background(), tt.ncrID, tt.proposed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Valid != tt.wantValid {
				t.Errorf("expected valid=%v, got %+v", tt.wantValid, d)
			}
			if d.RequiresApproval != tt.wantApproval {
				t.Errorf("expected approval=%v, got %+v", tt.wantApproval, d)
			}
			if !d.Valid && d.Reason == "" {
				t.Error("expected a reason for an invalid disposition")
			}
		})
	}
}

func TestValidateNCRDispositionUnknownNCR(t *testing.T) {
	f := newGateFixture()

	d, err := f.gate.ValidateNCRDisposition(context.Background(), "ncr-missing", DispositionRework)
	if err != nil {
		t.Fatalf("missing NCR must produce an invalid decision, not fail: %v", err)
	}
	if d.Valid {
		t.Errorf("expected invalid, got %+v", d)
	}
	if !strings.Contains(d.Reason, "not found") {
		t.Errorf("unexpected reason %q", d.Reason)
	}
}
