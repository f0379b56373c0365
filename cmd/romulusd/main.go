// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// romulusd reconciles a libvirt hypervisor against a desired-state
// document: load config, discover current state, synthesize desired
// state, plan the diff, and execute the plan.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/somatczk/romulus/adapter"
	"github.com/somatczk/romulus/cloudinit"
	"github.com/somatczk/romulus/config"
	"github.com/somatczk/romulus/discover"
	"github.com/somatczk/romulus/executor"
	"github.com/somatczk/romulus/plan"
	"github.com/somatczk/romulus/synth"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath      = flag.String("config", "", "path to romulus.yaml (default: search standard locations)")
		mode            = flag.String("mode", "serial", "execution mode: serial, parallel, or dry_run")
		rollback        = flag.Bool("rollback", false, "roll back completed actions on failure")
		continueOnError = flag.Bool("continue-on-error", false, "in serial mode, keep executing after an action fails")
		logLevel        = flag.String("log-level", "info", "log level: trace, debug, info, warn, error")
	)
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "romulusd",
		Level: hclog.LevelFromString(*logLevel),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	doc, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	ad := adapter.New(logger)
	gen := cloudinit.NewGenerator(logger)
	disc := discover.New(ad, logger)

	current, err := disc.Discover(ctx)
	if err != nil {
		logger.Error("failed to discover current state", "error", err)
		return 1
	}

	desired := synth.Synthesize(doc)

	actions := plan.Build(current, desired)
	actions = plan.Optimize(actions)
	plan.Sort(actions)

	if err := plan.Validate(actions, current); err != nil {
		logger.Error("plan failed validation", "error", err)
		return 1
	}

	stats := plan.ComputeStats(actions)
	logger.Info("plan computed",
		"total", stats.Total, "creates", stats.Creates, "updates", stats.Updates,
		"destroys", stats.Destroys, "estimated_elapsed", stats.EstimatedElapsed)

	if stats.Total == 0 {
		logger.Info("no changes required")
		return 0
	}

	exec := executor.New(ad, gen,
		executor.WithMode(executor.Mode(*mode)),
		executor.WithRollback(*rollback),
		executor.WithContinueOnError(*continueOnError),
		executor.WithLogger(logger),
	)

	result, err := exec.Run(ctx, actions, doc)
	logger.Info("run finished",
		"outcome", result.Outcome,
		"successful", result.Summary.Successful,
		"failed", result.Summary.Failed,
		"skipped", result.Summary.Skipped,
		"elapsed", result.Summary.Elapsed)

	if err != nil {
		logger.Error("execution failed", "error", err)
		return 1
	}

	if result.Outcome == executor.OutcomeCancelled {
		fmt.Fprintln(os.Stderr, "romulusd: cancelled")
		return 130
	}

	if result.Summary.Failed > 0 {
		return 1
	}

	return 0
}
