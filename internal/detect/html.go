package detect

import (
	"math"
	"regexp"
	"strings"
)

// PageCapture is the collaborator-supplied snapshot of one fetched page.
type PageCapture struct {
	URL             string
	HTML            string
	ResponseHeaders map[string]string
	LoadedResources []string // URLs of scripts/images/etc loaded by the page
	SetCookies      []string // raw Set-Cookie header values
}

// HTMLObservations is the normalized context produced by the DOM analyzer,
// consumed both as findings input and as the region-rule predicate context.
type HTMLObservations struct {
	HasRejectAllButton   bool
	HasAcceptAllButton   bool
	PreTickedMarketing   bool
	TrackerDomains       []string
	GAbeforeConsent      bool
	CookiesFound         int
	StrictlyNecessary    int
	MarketingOrAnalytics int
	HasDutchImprint      bool
	HasKvKNumber         bool
	HasPrivacyPolicyLink bool
}

var trackerDomainPatterns = []string{
	"google-analytics.com", "googletagmanager.com", "doubleclick.net",
	"facebook.net", "connect.facebook.net", "hotjar.com", "segment.io",
}

var (
	kvkRe = regexp.MustCompile(`(?i)kvk[\s:#-]*\d{8}`)
	rejectAllRe = regexp.MustCompile(`(?i)reject\s*all|alles\s*weigeren`)
	acceptAllRe = regexp.MustCompile(`(?i)accept\s*all|alles\s*accepteren`)
	imprintRe   = regexp.MustCompile(`(?i)colofon|impressum|bedrijfsgegevens`)
	privacyRe   = regexp.MustCompile(`(?i)privacy\s*(policy|verklaring)|privacybeleid`)
	checkedInputRe = regexp.MustCompile(`(?i)<input[^>]*marketing[^>]*checked[^>]*>|<input[^>]*checked[^>]*marketing[^>]*>`)
)

// AnalyzeHTML classifies one page capture into HTMLObservations. Cookie
// count follows the priority: explicit Set-Cookie headers, then declared
// cookies in a privacy policy (not modeled here — treated as absent),
// then the tracker-count heuristic.
func AnalyzeHTML(p PageCapture) HTMLObservations {
	html := p.HTML
	obs := HTMLObservations{
		HasRejectAllButton:   rejectAllRe.MatchString(html),
		HasAcceptAllButton:   acceptAllRe.MatchString(html),
		PreTickedMarketing:   checkedInputRe.MatchString(html),
		HasDutchImprint:      imprintRe.MatchString(html),
		HasKvKNumber:         kvkRe.MatchString(html),
		HasPrivacyPolicyLink: privacyRe.MatchString(html),
	}

	for _, res := range p.LoadedResources {
		for _, dom := range trackerDomainPatterns {
			if strings.Contains(res, dom) {
				obs.TrackerDomains = append(obs.TrackerDomains, dom)
			}
		}
	}
	obs.GAbeforeConsent = containsGA(p.LoadedResources) && !obs.HasRejectAllButton && gaLoadsEarly(html)

	obs.CookiesFound = estimateCookieCount(p.SetCookies, obs.TrackerDomains)
	obs.StrictlyNecessary, obs.MarketingOrAnalytics = classifyCookies(p.SetCookies, obs.CookiesFound)

	return obs
}

func containsGA(resources []string) bool {
	for _, r := range resources {
		if strings.Contains(r, "google-analytics.com") || strings.Contains(r, "googletagmanager.com") {
			return true
		}
	}
	return false
}

// gaLoadsEarly is a coarse heuristic: GA is considered loaded "before
// consent" when no explicit consent-manager script tag precedes it in
// document order. Real consent-timing analysis is a collaborator concern;
// this approximates it from static markup only.
func gaLoadsEarly(html string) bool {
	gaIdx := strings.Index(html, "google-analytics.com")
	if gaIdx == -1 {
		gaIdx = strings.Index(html, "googletagmanager.com")
	}
	if gaIdx == -1 {
		return false
	}
	consentIdx := strings.Index(strings.ToLower(html), "consent")
	return consentIdx == -1 || consentIdx > gaIdx
}

// estimateCookieCount implements the documented heuristic: prefer
// explicit Set-Cookie headers; otherwise estimate from tracker count by
// max(2, min(round(trackers*0.7), 20)). A page with neither Set-Cookie
// headers nor trackers yields 0.
func estimateCookieCount(setCookies []string, trackers []string) int {
	if len(setCookies) > 0 {
		return len(setCookies)
	}
	if len(trackers) == 0 {
		return 0
	}
	est := int(math.Round(float64(len(trackers)) * 0.7))
	if est > 20 {
		est = 20
	}
	if est < 2 {
		est = 2
	}
	return est
}

func classifyCookies(setCookies []string, total int) (strictlyNecessary int, marketingOrAnalytics int) {
	if len(setCookies) == 0 {
		// estimated cookies with no header detail default to marketing/analytics,
		// matching the conservative assumption that undeclared cookies are tracking.
		return 0, total
	}
	for _, c := range setCookies {
		lower := strings.ToLower(c)
		if strings.Contains(lower, "session") || strings.Contains(lower, "csrf") {
			strictlyNecessary++
		} else {
			marketingOrAnalytics++
		}
	}
	return strictlyNecessary, marketingOrAnalytics
}

// ToRuleContext flattens observations into the map shape region-rule
// predicates evaluate against.
func (o HTMLObservations) ToRuleContext() map[string]interface{} {
	return map[string]interface{}{
		"has_reject_all_button":   o.HasRejectAllButton,
		"pre_ticked_marketing":    o.PreTickedMarketing,
		"ga_before_consent":       o.GAbeforeConsent,
		"has_dutch_imprint":       o.HasDutchImprint,
		"has_kvk_number":          o.HasKvKNumber,
		"has_privacy_policy_link": o.HasPrivacyPolicyLink,
	}
}
