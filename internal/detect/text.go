// Package detect implements the scanner-agnostic detection primitives
// (C2): pure functions over bytes/handles plus a registry snapshot,
// returning findings and diagnostics and never touching persistent state.
package detect

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// TextChunkSize is the default chunk size (bytes) the text scanner reads
// at a time; WindowOverlap ensures a match straddling a chunk boundary is
// still found, deduplicated by (offset, rule_id).
const (
	TextChunkSize = 64 * 1024
	WindowOverlap = 256
)

// ScanText runs the sliding-window pattern match over content, tagging
// each finding with location (derived from locationPrefix + byte offset).
// It is a pure function of (content, snapshot, regionSet); it never
// writes persistent state.
func ScanText(jobID uuid.UUID, content []byte, locationPrefix string, snap *registry.Snapshot, regionSet []string) []domain.Finding {
	text := decodeBestEffort(content)
	seen := map[string]bool{}
	var findings []domain.Finding

	for start := 0; start < len(text); start += TextChunkSize {
		end := start + TextChunkSize + WindowOverlap
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]
		matches := snap.Match(window, regionSet)
		for _, m := range matches {
			absOffset := start + m.Offset
			dedupKey := ruleKeyFor(m.PIIKind, absOffset)
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true

			findings = append(findings, domain.Finding{
				FindingID:  uuid.New(),
				JobID:      jobID,
				Type:       "pii",
				Category:   string(m.Category),
				Severity:   m.Severity,
				Location:   locationWithOffset(locationPrefix, absOffset),
				Excerpt:    m.Excerpt,
				Confidence: m.Confidence,
				RuleID:     m.PIIKind,
				RegionTags: m.RegionTags,
				PIIKind:    m.PIIKind,
			})
		}
		if end == len(text) {
			break
		}
	}
	return findings
}

func ruleKeyFor(ruleID string, offset int) string {
	var sb strings.Builder
	sb.WriteString(ruleID)
	sb.WriteByte('@')
	sb.WriteString(itoa(offset))
	return sb.String()
}

func locationWithOffset(prefix string, offset int) string {
	if prefix == "" {
		return "offset=" + itoa(offset)
	}
	return prefix + ",offset=" + itoa(offset)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		return "-" + string(b)
	}
	return string(b)
}

// decodeBestEffort returns content as text, falling back to a lossy
// UTF-8 decode (replacing invalid sequences) when it isn't valid UTF-8
// already — the encoding-fallback diagnostic scanners attach separately.
func decodeBestEffort(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "�")
}

// CountLines returns the number of newline-delimited lines in content,
// used by the aggregator's lines_analyzed canonicalization.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := strings.Count(string(content), "\n")
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
