package registry

import "testing"

func TestValidateDutchBSN(t *testing.T) {
	cases := map[string]bool{
		"111222333": true,
		"123456782": true,
		"123456789": false,
		"12345":     false,
	}
	for in, want := range cases {
		if got := ValidateDutchBSN(in); got != want {
			t.Errorf("ValidateDutchBSN(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidateLuhn(t *testing.T) {
	if !ValidateLuhn("4532015112830366") {
		t.Error("expected valid Luhn card number to pass")
	}
	if ValidateLuhn("1234567890123456") {
		t.Error("expected invalid Luhn card number to fail")
	}
}

func TestValidateIBAN(t *testing.T) {
	if !ValidateIBAN("NL91ABNA0417164300") {
		t.Error("expected valid IBAN to pass")
	}
	if ValidateIBAN("NL91ABNA0417164301") {
		t.Error("expected corrupted IBAN to fail")
	}
}

func TestRegistryMatchEmail(t *testing.T) {
	r := New()
	snap := r.Snapshot()
	matches := snap.Match("contact us at jane.doe@example.com for details", nil)
	found := false
	for _, m := range matches {
		if m.PIIKind == "email" && m.Excerpt == "jane.doe@example.com" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected email match, got %+v", matches)
	}
}

func TestRegistryEvaluateRulesS1(t *testing.T) {
	r := New()
	snap := r.Snapshot()
	ctx := map[string]interface{}{
		"has_reject_all_button": false,
		"pre_ticked_marketing":  true,
		"ga_before_consent":     true,
		"has_dutch_imprint":     false,
		"has_kvk_number":        false,
	}
	violations := snap.EvaluateRules("website", ctx, []string{"NL"})
	if len(violations) != 5 {
		t.Fatalf("expected 5 NL violations for scenario S1, got %d: %+v", len(violations), violations)
	}
}

func TestReloadRejectsEmptyPatternSet(t *testing.T) {
	r := New()
	before := r.Snapshot().Version()
	err := r.Reload(nil, DefaultRegionRules(), DefaultSeverityWeights())
	if err == nil {
		t.Fatal("expected reload with empty pattern set to fail")
	}
	if r.Snapshot().Version() != before {
		t.Error("expected snapshot to be retained after failed reload")
	}
}

func TestReloadDefaultsBumpsVersion(t *testing.T) {
	r := New()
	before := r.Snapshot().Version()
	if err := r.ReloadDefaults(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := r.Snapshot()
	if snap.Version() <= before {
		t.Errorf("expected version to advance past %d, got %d", before, snap.Version())
	}
	if len(snap.Patterns) == 0 || len(snap.Rules) == 0 {
		t.Error("expected defaults to be non-empty after reload")
	}
}
