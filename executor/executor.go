// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package executor implements the Executor: it drives a plan.Action list
// to a terminal outcome under a serial, parallel, or dry-run scheduling
// mode, dispatching each action to the Adapter (and, for domain creates,
// the Cloud-Init Generator), recording a per-run result ledger, and
// optionally rolling back on failure.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/somatczk/romulus/adapter"
	"github.com/somatczk/romulus/cloudinit"
	"github.com/somatczk/romulus/config"
	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/plan"
)

// Mode is the Executor's scheduling mode.
type Mode string

const (
	ModeSerial   Mode = "serial"
	ModeParallel Mode = "parallel"
	ModeDryRun   Mode = "dry_run"
)

// kindLevel assigns the pool, network, volume and domain create kinds to
// their dependency levels; destroys, and any create whose kind is not
// listed here (such as cloudinit), fall into the single terminal
// destroyLevel, per spec.md §4.6's "destroys form a final level".
var kindLevel = map[plan.ActionKind]int{
	plan.ActionKindPool:    0,
	plan.ActionKindNetwork: 1,
	plan.ActionKindVolume:  2,
	plan.ActionKindDomain:  3,
}

const destroyLevel = 4

type Option func(*Executor)

func WithMode(m Mode) Option                { return func(e *Executor) { e.mode = m } }
func WithRollback(enabled bool) Option      { return func(e *Executor) { e.rollback = enabled } }
func WithContinueOnError(v bool) Option     { return func(e *Executor) { e.continueOnError = v } }
func WithLogger(logger hclog.Logger) Option { return func(e *Executor) { e.logger = logger.Named("executor") } }

// Executor holds no mutable state beyond what a single Run constructs
// locally; multiple Executors (or concurrent Run calls against disjoint
// plans) require no coordination, per spec.md §4.6's concurrency
// discipline.
type Executor struct {
	adapter adapter.Adapter
	gen     *cloudinit.Generator

	mode            Mode
	rollback        bool
	continueOnError bool
	logger          hclog.Logger
}

func New(ad adapter.Adapter, gen *cloudinit.Generator, opts ...Option) *Executor {
	e := &Executor{
		adapter: ad,
		gen:     gen,
		mode:    ModeSerial,
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives actions to completion under e's configured mode.
func (e *Executor) Run(ctx context.Context, actions []plan.Action, doc config.Document) (Result, error) {
	start := time.Now()

	if err := validate(actions); err != nil {
		return Result{}, err
	}

	if e.mode == ModeDryRun {
		return e.runDryRun(actions, start), nil
	}

	var (
		results   []ActionResult
		completed []plan.Action
		runErr    error
	)

	if e.mode == ModeParallel {
		results, completed, runErr = e.runParallel(ctx, actions, doc)
	} else {
		results, completed, runErr = e.runSerial(ctx, actions, doc)
	}

	summary := summarize(results, start)

	// Cancellation is a first-class non-error outcome (spec.md §5): if the
	// caller's context was cancelled, that takes precedence over whatever
	// error an in-flight Adapter call surfaced as a side effect of it.
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeCancelled, Summary: summary, Results: results, Completed: completed}, nil
	}

	if runErr != nil {
		if e.rollback {
			if rollbackErr := rollback(context.Background(), completed, e.adapter); rollbackErr != nil {
				e.logger.Error("rollback failed", "error", rollbackErr)
				if re, ok := errs.AsError(runErr); ok {
					re.WithSecondary(rollbackErr)
				}
			}
		}
		return Result{Summary: summary, Results: results, Completed: completed}, runErr
	}

	outcome := OutcomeSuccess
	if summary.Failed > 0 {
		outcome = OutcomePartialSuccess
	}

	return Result{Outcome: outcome, Summary: summary, Results: results, Completed: completed}, nil
}

func (e *Executor) runDryRun(actions []plan.Action, start time.Time) Result {
	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		skipped := isSkipped(a)
		e.logger.Info("dry run action", "type", a.Type, "kind", a.Kind, "name", a.Name, "skipped", skipped)
		results = append(results, ActionResult{Action: a, Skipped: skipped})
	}
	return Result{Outcome: OutcomeDryRunComplete, Summary: summarize(results, start), Results: results}
}

// runSerial executes actions one at a time in plan order. The first
// failure stops the run unless continue_on_error is set.
func (e *Executor) runSerial(ctx context.Context, actions []plan.Action, doc config.Document) ([]ActionResult, []plan.Action, error) {
	var (
		results   []ActionResult
		completed []plan.Action
		firstErr  error
	)

	for _, a := range actions {
		if ctx.Err() != nil {
			break
		}

		if isSkipped(a) {
			e.logger.Debug("skipping action", "type", a.Type, "kind", a.Kind, "name", a.Name)
			results = append(results, ActionResult{Action: a, Skipped: true})
			continue
		}

		e.logger.Debug("dispatching action", "type", a.Type, "kind", a.Kind, "name", a.Name)
		err := dispatch(ctx, a, e.adapter, e.gen, doc, actions)
		results = append(results, ActionResult{Action: a, Err: err})

		if err != nil {
			e.logger.Error("action failed", "type", a.Type, "kind", a.Kind, "name", a.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			if !e.continueOnError {
				break
			}
			continue
		}

		e.logger.Info("action completed", "type", a.Type, "kind", a.Kind, "name", a.Name)
		completed = append(completed, a)
	}

	if firstErr != nil && !e.continueOnError {
		return results, completed, firstErr
	}
	return results, completed, nil
}

// runParallel groups actions by dependency level and fans each level out
// over a plain WaitGroup, waiting for every sibling in the level to
// settle before starting the next. A failure within a level stops
// subsequent levels, but (unlike errgroup.WithContext) never cancels the
// context of still-running siblings in the same level: spec.md requires
// the Executor to let in-flight actions in a level finish rather than
// killing them out from under a failing neighbor.
func (e *Executor) runParallel(ctx context.Context, actions []plan.Action, doc config.Document) ([]ActionResult, []plan.Action, error) {
	levels := groupByLevel(actions)

	var (
		mu        sync.Mutex
		results   []ActionResult
		completed []plan.Action
		firstErr  error
	)

	for _, level := range levels {
		if ctx.Err() != nil {
			break
		}

		var wg sync.WaitGroup
		for _, a := range level {
			a := a
			if isSkipped(a) {
				mu.Lock()
				results = append(results, ActionResult{Action: a, Skipped: true})
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()

				e.logger.Debug("dispatching action", "type", a.Type, "kind", a.Kind, "name", a.Name)
				err := dispatch(ctx, a, e.adapter, e.gen, doc, actions)

				mu.Lock()
				results = append(results, ActionResult{Action: a, Err: err})
				if err == nil {
					completed = append(completed, a)
				} else if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()

				if err != nil {
					e.logger.Error("action failed", "type", a.Type, "kind", a.Kind, "name", a.Name, "error", err)
				} else {
					e.logger.Info("action completed", "type", a.Type, "kind", a.Kind, "name", a.Name)
				}
			}()
		}

		wg.Wait()
		if firstErr != nil {
			break
		}
	}

	return results, completed, firstErr
}

// groupByLevel buckets actions by kindLevel for creates and destroyLevel
// for destroys, returning buckets in ascending level order. update and
// unrecognized-kind actions are left in whichever level their literal
// Kind maps to (they are filtered out by isSkipped before dispatch
// either way).
func groupByLevel(actions []plan.Action) [][]plan.Action {
	buckets := map[int][]plan.Action{}
	for _, a := range actions {
		level := destroyLevel
		if a.Type != plan.ActionDestroy {
			if l, ok := kindLevel[a.Kind]; ok {
				level = l
			}
		}
		buckets[level] = append(buckets[level], a)
	}

	levels := make([][]plan.Action, 0, len(buckets))
	for l := 0; l <= destroyLevel; l++ {
		if b, ok := buckets[l]; ok {
			levels = append(levels, b)
		}
	}
	return levels
}

func summarize(results []ActionResult, start time.Time) Summary {
	s := Summary{Total: len(results), Elapsed: time.Since(start)}
	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Err != nil:
			s.Failed++
			s.Errors = append(s.Errors, r.Err)
		default:
			s.Successful++
		}
	}
	return s
}
