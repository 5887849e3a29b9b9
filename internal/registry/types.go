// Package registry implements the Pattern & Rule Registry (C1): compiled
// PII patterns, regional rule packs, and severity/weight tables, held as
// an atomically-swappable read-only snapshot shared across every worker.
package registry

// Severity is the closed finding-severity enum.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// severityOrder gives severities a total order for deterministic sorting.
var severityOrder = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank returns the sort rank of a severity, lower is more severe.
func (s Severity) Rank() int {
	if r, ok := severityOrder[s]; ok {
		return r
	}
	return len(severityOrder)
}

// ComplianceCategory buckets a PII kind into the GDPR principle it bears
// on most directly, used by the Compliance Score Engine (C7).
type ComplianceCategory string

const (
	CategoryLawfulness        ComplianceCategory = "lawfulness"
	CategoryPurposeLimitation ComplianceCategory = "purpose_limitation"
	CategoryDataMinimisation  ComplianceCategory = "data_minimisation"
	CategoryAccuracy          ComplianceCategory = "accuracy"
	CategoryStorageLimitation ComplianceCategory = "storage_limitation"
	CategoryIntegrity         ComplianceCategory = "integrity_confidentiality"
)

// AllCategories lists every compliance principle in a stable order.
func AllCategories() []ComplianceCategory {
	return []ComplianceCategory{
		CategoryLawfulness, CategoryPurposeLimitation, CategoryDataMinimisation,
		CategoryAccuracy, CategoryStorageLimitation, CategoryIntegrity,
	}
}

// Validator post-checks a raw pattern match, degrading confidence when it
// fails rather than discarding the match outright.
type Validator func(raw string) bool

// Matcher finds raw occurrences of a PII kind in a text window. It returns
// the byte offset and matched substring of each occurrence.
type Matcher func(window string) []RawOccurrence

// RawOccurrence is one matcher hit before validation/confidence scoring.
type RawOccurrence struct {
	Offset int
	Text   string
}

// PatternEntry is one PII recognizer, matcher plus optional validator.
type PatternEntry struct {
	PIIKind         string
	Matcher         Matcher
	Validator       Validator // nil if no post-check exists
	ConfidenceBase  float64
	DefaultSeverity Severity
	RegionTags      []string
	Category        ComplianceCategory
}

// RawMatch is a validated-or-not match produced by Registry.Match.
type RawMatch struct {
	PIIKind    string
	Offset     int
	Excerpt    string
	Confidence float64
	Validated  bool
	Severity   Severity
	RegionTags []string
	Category   ComplianceCategory
}

// RuleEntry is one region-specific compliance rule. Predicate receives a
// normalized scanner context map and returns whether the rule is violated.
type RuleEntry struct {
	RuleID           string
	AppliesToTypes   []string // scan_type values this rule is relevant to
	Region           string
	Severity         Severity
	GDPRArticleRefs  []string
	PenaltyMultiplier float64
	Predicate        Predicate
}

// Predicate evaluates a region rule against a normalized scanner context.
// Region predicates operate on the rule context map (e.g.
// "has_reject_all_button", "ga_before_consent") that the website scanner
// builds with C2's HTML/DOM analyzer (detect.HTMLObservations.ToRuleContext).
type Predicate interface {
	Eval(ctx map[string]interface{}) (bool, error)
}

// RuleViolation is the outcome of one rule firing against a scan context.
type RuleViolation struct {
	RuleID            string
	Region            string
	Severity          Severity
	GDPRArticleRefs   []string
	PenaltyMultiplier float64
}

// SeverityWeights maps severity to its numeric penalty weight, used by the
// Compliance Score Engine. Kept here so rule-pack authors can tune scoring
// without touching C7 code.
type SeverityWeights struct {
	Critical float64
	High     float64
	Medium   float64
	Low      float64
	Info     float64
}

// DefaultSeverityWeights mirror spec §4.7's penalty table.
func DefaultSeverityWeights() SeverityWeights {
	return SeverityWeights{Critical: 25, High: 10, Medium: 3, Low: 1, Info: 0}
}

func (w SeverityWeights) For(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return w.Critical
	case SeverityHigh:
		return w.High
	case SeverityMedium:
		return w.Medium
	case SeverityLow:
		return w.Low
	default:
		return w.Info
	}
}
