// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"time"

	"github.com/somatczk/romulus/plan"
)

// Outcome is the terminal classification of a Run. A Run that fails
// without continue_on_error returns an empty Outcome and a non-nil error
// instead (the structured error is the authoritative result).
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialSuccess Outcome = "partial_success"
	OutcomeDryRunComplete Outcome = "dry_run_complete"
	OutcomeCancelled      Outcome = "cancelled"
)

// ActionResult records what happened to a single Action.
type ActionResult struct {
	Action  plan.Action
	Skipped bool
	Err     error
}

// Summary is the run-level tally the Executor always produces, success or
// failure.
type Summary struct {
	Total      int
	Successful int
	Failed     int
	Skipped    int
	Elapsed    time.Duration
	Errors     []error
}

// Result is everything a Run produces: the terminal Outcome, the Summary,
// the per-action results in completion order, and the ledger of actions
// that completed successfully (used for rollback, and returned so a
// caller can see exactly what succeeded before a failure per spec.md
// §7's "no partial state is silently hidden").
type Result struct {
	Outcome   Outcome
	Summary   Summary
	Results   []ActionResult
	Completed []plan.Action
}
