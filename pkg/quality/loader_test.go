package quality

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const testRuleFile = `
disposition_rules:
  - severity: MINOR
    allowed_dispositions: [USE_AS_IS, REWORK, REPAIR]
  - severity: CRITICAL
    allowed_dispositions: [SCRAP, RETURN_TO_SUPPLIER]
    requires_approval: true
    approval_level: quality_manager

signature_requirements:
  - action_type: complete_operation
    site_id: site-1
    requires_signature: true
    signature_level: supervisor
  - action_type: ncr_disposition
    requires_signature: true
    signature_level: quality_engineer
`

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rule file: %v", err)
	}
	return path
}

func TestRuleLoaderLoad(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewRuleLoader(writeRuleFile(t, testRuleFile), logger)

	if err := loader.Load(); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	ctx := context.Background()

	rule, err := loader.GetDispositionRule(ctx, SeverityCritical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule == nil {
		t.Fatal("expected a CRITICAL rule")
	}
	if !rule.Allows(DispositionScrap) || rule.Allows(DispositionUseAsIs) {
		t.Errorf("unexpected allowed dispositions %v", rule.AllowedDispositions)
	}
	if !rule.RequiresApproval || rule.ApprovalLevel != "quality_manager" {
		t.Errorf("unexpected approval fields %+v", rule)
	}

	rule, err = loader.GetDispositionRule(ctx, SeverityMajor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule != nil {
		t.Errorf("expected no MAJOR rule, got %+v", rule)
	}

	req, err := loader.GetSignatureRequirement(ctx, "complete_operation", "site-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil || !req.RequiresSignature || req.SignatureLevel != "supervisor" {
		t.Errorf("unexpected signature requirement %+v", req)
	}

	req, err = loader.GetSignatureRequirement(ctx, "ncr_disposition", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req == nil || req.SignatureLevel != "quality_engineer" {
		t.Errorf("expected global fallback row, got %+v", req)
	}
}

func TestRuleLoaderMissingFile(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewRuleLoader(filepath.Join(t.TempDir(), "absent.yaml"), logger)

	if err := loader.Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRuleLoaderInvalidRules(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "disposition_rules: ["},
		{"missing severity", "disposition_rules:\n  - allowed_dispositions: [REWORK]\n"},
		{"empty dispositions", "disposition_rules:\n  - severity: MINOR\n    allowed_dispositions: []\n"},
		{"missing action type", "signature_requirements:\n  - requires_signature: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zerolog.New(nil).Level(zerolog.Disabled)
			loader := NewRuleLoader(writeRuleFile(t, tt.content), logger)
			if err := loader.Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRuleLoaderKeepsPreviousRulesOnBadReload(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	path := writeRuleFile(t, testRuleFile)
	loader := NewRuleLoader(path, logger)

	if err := loader.Load(); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	if err := os.WriteFile(path, []byte("disposition_rules: ["), 0o644); err != nil {
		t.Fatalf("failed to overwrite rule file: %v", err)
	}
	if err := loader.Load(); err == nil {
		t.Fatal("expected reload error")
	}

	// The previous rule set must still be served.
	rule, err := loader.GetDispositionRule(context.Background(), SeverityMinor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule == nil || !rule.Allows(DispositionRework) {
		t.Errorf("expected previous rules to survive a bad reload, got %+v", rule)
	}
}
