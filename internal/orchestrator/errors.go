// Package orchestrator implements the central scheduler (C4): the
// admission queue, the fixed-size worker pool with per-scan-type caps,
// and the active job table, wired against a license/quota gate and a
// scanner registry resolved elsewhere.
package orchestrator

import "errors"

// Rejection is a structured admission-time refusal. Submit never returns
// a bare error for an expected rejection path; callers type-switch on
// this to decide whether to retry, back off, or surface to the user.
type Rejection struct {
	Code   string
	Reason string
}

func (r *Rejection) Error() string { return r.Code + ": " + r.Reason }

func rejectedLicense(reason string) *Rejection {
	return &Rejection{Code: "RejectedLicense", Reason: reason}
}

func rejectedQuota(reason string) *Rejection {
	return &Rejection{Code: "RejectedQuota", Reason: reason}
}

func rejectedConcurrency(reason string) *Rejection {
	return &Rejection{Code: "RejectedConcurrency", Reason: reason}
}

func rejectedUnknownScanType(scanType string) *Rejection {
	return &Rejection{Code: "RejectedUnknownScanType", Reason: "unrecognized scan type: " + scanType}
}

// ErrJobNotFound is returned by Query/Cancel/Stream for an unknown job_id.
var ErrJobNotFound = errors.New("orchestrator: job not found")

// ErrAlreadyTerminal names the already-terminal job case. Cancel does not
// return it: cancelling a job that is already terminal is a no-op that
// returns nil, since Cancel is idempotent.
var ErrAlreadyTerminal = errors.New("orchestrator: job already in a terminal state")
