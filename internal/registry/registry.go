package registry

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Snapshot is the immutable, point-in-time set of patterns, rules and
// weights a scan is issued against. A reload swaps the Registry's
// snapshot pointer atomically; in-flight scans keep the reference they
// already hold, so a reload never perturbs a running scan.
type Snapshot struct {
	Patterns []PatternEntry
	Rules    []RuleEntry
	Weights  SeverityWeights
	version  int64
}

func (s *Snapshot) Version() int64 { return s.version }

// Registry is the Pattern & Rule Registry (C1). Zero value is not usable;
// construct with New.
type Registry struct {
	current atomic.Pointer[Snapshot]
	nextVer int64
}

// New builds a Registry seeded with the built-in pattern set, NL/EU rule
// pack and default severity weights.
func New() *Registry {
	r := &Registry{}
	snap := &Snapshot{
		Patterns: DefaultPatterns(),
		Rules:    DefaultRegionRules(),
		Weights:  DefaultSeverityWeights(),
		version:  1,
	}
	r.current.Store(snap)
	r.nextVer = 2
	return r
}

// Snapshot returns the currently active, read-only snapshot. Callers hold
// this reference for the life of a scan.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Reload atomically replaces the active snapshot. A malformed pack (e.g.
// an empty pattern set) is rejected with the previous snapshot retained —
// reload never breaks an in-flight or future scan.
func (r *Registry) Reload(patterns []PatternEntry, rules []RuleEntry, weights SeverityWeights) error {
	if err := validatePack(patterns, rules); err != nil {
		return fmt.Errorf("registry: reload rejected: %w", err)
	}
	next := &Snapshot{
		Patterns: patterns,
		Rules:    rules,
		Weights:  weights,
		version:  atomic.AddInt64(&r.nextVer, 1) - 1,
	}
	r.current.Store(next)
	return nil
}

// ReloadDefaults re-seeds the active snapshot from the built-in pattern
// set, NL/EU rule pack and default severity weights, bumping the version.
// It is what both the periodic reload poller and the admin-triggered
// `scancore registry reload` path call — there is no external rule-pack
// source yet, so a reload currently means "pick up the binary's own
// built-in rules again" rather than replacing them with new ones.
func (r *Registry) ReloadDefaults() error {
	return r.Reload(DefaultPatterns(), DefaultRegionRules(), DefaultSeverityWeights())
}

func validatePack(patterns []PatternEntry, rules []RuleEntry) error {
	if len(patterns) == 0 {
		return fmt.Errorf("empty pattern set")
	}
	seen := map[string]bool{}
	for _, p := range patterns {
		if p.PIIKind == "" || p.Matcher == nil {
			return fmt.Errorf("pattern entry missing pii_kind or matcher")
		}
		if seen[p.PIIKind] {
			return fmt.Errorf("duplicate pii_kind %q", p.PIIKind)
		}
		seen[p.PIIKind] = true
	}
	ruleIDs := map[string]bool{}
	for _, r := range rules {
		if r.RuleID == "" || r.Predicate == nil {
			return fmt.Errorf("rule entry missing rule_id or predicate")
		}
		if ruleIDs[r.RuleID] {
			return fmt.Errorf("duplicate rule_id %q", r.RuleID)
		}
		ruleIDs[r.RuleID] = true
	}
	return nil
}

// Match runs every pattern in the snapshot over window, restricted to
// patterns tagged for at least one region in regionSet (an empty
// regionSet matches every pattern). It is deterministic and side-effect
// free, per the C1 contract.
func (s *Snapshot) Match(window string, regionSet []string) []RawMatch {
	var out []RawMatch
	for _, p := range s.Patterns {
		if !regionIntersects(p.RegionTags, regionSet) {
			continue
		}
		for _, occ := range p.Matcher(window) {
			confidence := p.ConfidenceBase
			validated := false
			if p.Validator != nil {
				if p.Validator(occ.Text) {
					validated = true
				} else {
					confidence *= degradedConfidenceFactor
				}
			} else {
				validated = true
			}
			out = append(out, RawMatch{
				PIIKind:    p.PIIKind,
				Offset:     occ.Offset,
				Excerpt:    occ.Text,
				Confidence: confidence,
				Validated:  validated,
				Severity:   p.DefaultSeverity,
				RegionTags: p.RegionTags,
				Category:   p.Category,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// EvaluateRules runs every region rule applicable to scanType against ctx,
// restricted to regions in regionSet (empty regionSet evaluates every
// region). A predicate error is treated as non-violation and does not
// fail the scan — region rule evaluation must never abort a job.
func (s *Snapshot) EvaluateRules(scanType string, ctx map[string]interface{}, regionSet []string) []RuleViolation {
	var out []RuleViolation
	for _, rule := range s.Rules {
		if !containsString(rule.AppliesToTypes, scanType) {
			continue
		}
		if !regionIntersects([]string{rule.Region}, regionSet) {
			continue
		}
		violated, err := rule.Predicate.Eval(ctx)
		if err != nil || !violated {
			continue
		}
		out = append(out, RuleViolation{
			RuleID:            rule.RuleID,
			Region:            rule.Region,
			Severity:          rule.Severity,
			GDPRArticleRefs:   rule.GDPRArticleRefs,
			PenaltyMultiplier: rule.PenaltyMultiplier,
		})
	}
	return out
}

// SeverityForRule resolves the registry's authoritative severity for a
// finding's rule_id: a PII pattern's kind if one matches, else a region
// rule's id. The aggregator (C6) uses this to override a scanner's
// advisory severity — the registry always wins.
func (s *Snapshot) SeverityForRule(ruleID string) (Severity, bool) {
	for _, p := range s.Patterns {
		if p.PIIKind == ruleID {
			return p.DefaultSeverity, true
		}
	}
	for _, r := range s.Rules {
		if r.RuleID == ruleID {
			return r.Severity, true
		}
	}
	return "", false
}

func regionIntersects(tags, regionSet []string) bool {
	if len(regionSet) == 0 {
		return true
	}
	for _, t := range tags {
		if containsString(regionSet, t) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
