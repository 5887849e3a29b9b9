package registry

// DefaultRegionRules returns the built-in NL/EU rule pack. Predicates are
// native closures over the normalized website-scanner context (see
// detect.HTMLObservations); a reload may replace or extend this set
// wholesale with a rule-pack author's own entries.
func DefaultRegionRules() []RuleEntry {
	nl := []RuleEntry{
		{
			RuleID:            "MISSING_REJECT_ALL",
			AppliesToTypes:    []string{"website"},
			Region:            "NL",
			Severity:          SeverityCritical,
			GDPRArticleRefs:   []string{"Art.7"},
			PenaltyMultiplier: 1.2,
			Predicate: NativePredicate(func(ctx map[string]interface{}) (bool, error) {
				return !boolCtx(ctx, "has_reject_all_button"), nil
			}),
		},
		{
			RuleID:            "PRE_TICKED_MARKETING",
			AppliesToTypes:    []string{"website"},
			Region:            "NL",
			Severity:          SeverityCritical,
			GDPRArticleRefs:   []string{"Art.4(11)", "Art.7"},
			PenaltyMultiplier: 1.2,
			Predicate: NativePredicate(func(ctx map[string]interface{}) (bool, error) {
				return boolCtx(ctx, "pre_ticked_marketing"), nil
			}),
		},
		{
			RuleID:            "GOOGLE_ANALYTICS_NL",
			AppliesToTypes:    []string{"website"},
			Region:            "NL",
			Severity:          SeverityCritical,
			GDPRArticleRefs:   []string{"Art.6"},
			PenaltyMultiplier: 1.2,
			Predicate: NativePredicate(func(ctx map[string]interface{}) (bool, error) {
				return boolCtx(ctx, "ga_before_consent"), nil
			}),
		},
		{
			RuleID:            "MISSING_DUTCH_IMPRINT",
			AppliesToTypes:    []string{"website"},
			Region:            "NL",
			Severity:          SeverityMedium,
			GDPRArticleRefs:   []string{},
			PenaltyMultiplier: 1.2,
			Predicate: NativePredicate(func(ctx map[string]interface{}) (bool, error) {
				return !boolCtx(ctx, "has_dutch_imprint"), nil
			}),
		},
		{
			RuleID:            "MISSING_KVK_NUMBER",
			AppliesToTypes:    []string{"website"},
			Region:            "NL",
			Severity:          SeverityMedium,
			GDPRArticleRefs:   []string{},
			PenaltyMultiplier: 1.2,
			Predicate: NativePredicate(func(ctx map[string]interface{}) (bool, error) {
				return !boolCtx(ctx, "has_kvk_number"), nil
			}),
		},
	}

	eu := []RuleEntry{
		{
			RuleID:            "MISSING_PRIVACY_POLICY_LINK",
			AppliesToTypes:    []string{"website"},
			Region:            "EU",
			Severity:          SeverityHigh,
			GDPRArticleRefs:   []string{"Art.13"},
			PenaltyMultiplier: 1.0,
			Predicate: NativePredicate(func(ctx map[string]interface{}) (bool, error) {
				return !boolCtx(ctx, "has_privacy_policy_link"), nil
			}),
		},
	}

	return append(nl, eu...)
}

// NativePredicate adapts a Go closure to the Predicate interface.
type NativePredicate func(ctx map[string]interface{}) (bool, error)

// Eval calls the closure.
func (p NativePredicate) Eval(ctx map[string]interface{}) (bool, error) { return p(ctx) }

// boolCtx reads a boolean rule-context key; a missing or non-boolean value
// reads as false.
func boolCtx(ctx map[string]interface{}, key string) bool {
	v, _ := ctx[key].(bool)
	return v
}
