package domain

// EventKind is the closed ScanEvent discriminator per the Scanner contract.
type EventKind string

const (
	EventProgress   EventKind = "progress"
	EventFinding    EventKind = "finding"
	EventDiagnostic EventKind = "diagnostic"
	EventDone       EventKind = "done"
)

// DiagnosticLevel distinguishes recoverable warnings from hard errors that
// still don't abort the whole job.
type DiagnosticLevel string

const (
	DiagLevelInfo    DiagnosticLevel = "info"
	DiagLevelWarning DiagnosticLevel = "warning"
	DiagLevelError   DiagnosticLevel = "error"
)

// Diagnostic is a non-terminal note attached to the running scan: a
// skipped file, an OCR-unavailable fallback, an encoding guess.
type Diagnostic struct {
	Level   DiagnosticLevel
	Message string
}

// DoneSummary carries scanner-declared vocabulary hints the aggregator
// canonicalizes (pages_scanned, rows_sampled, endpoints_probed, ...).
type DoneSummary struct {
	Partial bool
	Hints   map[string]int
	Context map[string]interface{} // normalized context for region-rule evaluation
}

// ScanEvent is the uniform unit every scanner emits on its event stream.
type ScanEvent struct {
	Kind        EventKind
	ProgressPct int
	Note        string
	Finding     *Finding
	Diagnostic  *Diagnostic
	Done        *DoneSummary
}

func ProgressEvent(pct int, note string) ScanEvent {
	return ScanEvent{Kind: EventProgress, ProgressPct: pct, Note: note}
}

func FindingEvent(f Finding) ScanEvent {
	return ScanEvent{Kind: EventFinding, Finding: &f}
}

func DiagnosticEvent(level DiagnosticLevel, msg string) ScanEvent {
	return ScanEvent{Kind: EventDiagnostic, Diagnostic: &Diagnostic{Level: level, Message: msg}}
}

func DoneEvent(partial bool, hints map[string]int, ctx map[string]interface{}) ScanEvent {
	return ScanEvent{Kind: EventDone, Done: &DoneSummary{Partial: partial, Hints: hints, Context: ctx}}
}
