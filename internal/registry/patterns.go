package registry

import "regexp"

var (
	emailRe      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	bsnRe        = regexp.MustCompile(`\b\d{8,9}\b`)
	creditCardRe = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	ibanRe       = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)
	apiKeyRe     = regexp.MustCompile(`(?i)(?:api[_-]?key|secret|token)["'=:\s]+[A-Za-z0-9_\-]{16,}`)
	phoneNLRe    = regexp.MustCompile(`\b(?:\+31|0)[1-9]\d{8}\b`)
)

func regexMatcher(re *regexp.Regexp) Matcher {
	return func(window string) []RawOccurrence {
		locs := re.FindAllStringIndex(window, -1)
		out := make([]RawOccurrence, 0, len(locs))
		for _, l := range locs {
			out = append(out, RawOccurrence{Offset: l[0], Text: window[l[0]:l[1]]})
		}
		return out
	}
}

// DefaultPatterns returns the built-in PII pattern set. A rule-pack
// reload may supplement or replace this list entirely.
func DefaultPatterns() []PatternEntry {
	return []PatternEntry{
		{
			PIIKind:         "email",
			Matcher:         regexMatcher(emailRe),
			ConfidenceBase:  0.9,
			DefaultSeverity: SeverityMedium,
			RegionTags:      []string{"EU", "NL", "DE", "FR"},
			Category:        CategoryDataMinimisation,
		},
		{
			PIIKind:         "dutch_bsn",
			Matcher:         regexMatcher(bsnRe),
			Validator:       ValidateDutchBSN,
			ConfidenceBase:  0.85,
			DefaultSeverity: SeverityCritical,
			RegionTags:      []string{"NL"},
			Category:        CategoryLawfulness,
		},
		{
			PIIKind:         "credit_card",
			Matcher:         regexMatcher(creditCardRe),
			Validator:       ValidateLuhn,
			ConfidenceBase:  0.8,
			DefaultSeverity: SeverityCritical,
			RegionTags:      []string{"EU", "NL", "DE", "FR"},
			Category:        CategoryIntegrity,
		},
		{
			PIIKind:         "iban",
			Matcher:         regexMatcher(ibanRe),
			Validator:       ValidateIBAN,
			ConfidenceBase:  0.85,
			DefaultSeverity: SeverityHigh,
			RegionTags:      []string{"EU", "NL", "DE", "FR"},
			Category:        CategoryIntegrity,
		},
		{
			PIIKind:         "api_secret",
			Matcher:         regexMatcher(apiKeyRe),
			ConfidenceBase:  0.7,
			DefaultSeverity: SeverityHigh,
			RegionTags:      []string{"EU", "NL", "DE", "FR"},
			Category:        CategoryIntegrity,
		},
		{
			PIIKind:         "phone_nl",
			Matcher:         regexMatcher(phoneNLRe),
			ConfidenceBase:  0.6,
			DefaultSeverity: SeverityLow,
			RegionTags:      []string{"NL"},
			Category:        CategoryDataMinimisation,
		},
	}
}
