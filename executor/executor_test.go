// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/somatczk/romulus/adapter"
	"github.com/somatczk/romulus/cloudinit"
	"github.com/somatczk/romulus/config"
	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/plan"
	"github.com/somatczk/romulus/state"
)

func testDocForExecutor() config.Document {
	return config.Document{
		Cluster: config.Cluster{Name: "romulus", Domain: "cluster.local"},
		Network: config.Network{Name: "k8s-net", Mode: "nat", CIDR: "10.17.3.0/24"},
		Storage: config.Storage{PoolName: "k8s-pool", PoolPath: "/var/lib/romulus/pool"},
		Nodes: config.Nodes{
			Masters: config.Role{Count: 1, IPPrefix: "10.17.3.1"},
			Workers: config.Role{Count: 1, IPPrefix: "10.17.3.2"},
		},
	}
}

func poolCreateAction(name string) plan.Action {
	return plan.Action{Type: plan.ActionCreate, Kind: plan.ActionKindPool, Name: name, Resource: state.Pool{Name: name, Type: "dir", Path: "/pools/" + name}}
}

// TestRun_DryRun_SixConcurrent is the spec's race-condition contract
// (spec.md §5/§8): six concurrent Executors driving the same dry-run plan
// against a mock Adapter must all finish cleanly with no corrupted
// per-run state, and no Adapter call is made at all in dry-run mode.
func TestRun_DryRun_SixConcurrent(t *testing.T) {
	actions := []plan.Action{poolCreateAction("p1"), poolCreateAction("p2"), poolCreateAction("p3")}

	var wg sync.WaitGroup
	results := make([]Result, 6)
	runErrs := make([]error, 6)

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			mock := adapter.NewMockAdapter()
			gen := cloudinit.NewGenerator(hclog.NewNullLogger())
			e := New(mock, gen, WithMode(ModeDryRun))
			r, err := e.Run(context.Background(), actions, testDocForExecutor())
			results[idx] = r
			runErrs[idx] = err
		}(i)
	}
	wg.Wait()

	for i, err := range runErrs {
		if err != nil {
			t.Fatalf("executor %d returned error: %v", i, err)
		}
		if results[i].Outcome != OutcomeDryRunComplete {
			t.Fatalf("executor %d: expected dry_run_complete, got %s", i, results[i].Outcome)
		}
		if results[i].Summary.Total != 3 || results[i].Summary.Successful != 3 {
			t.Fatalf("executor %d: expected 3/3 successful actions, got %+v", i, results[i].Summary)
		}
	}
}

func TestRun_Serial_CreatesInOrder(t *testing.T) {
	mock := adapter.NewMockAdapter()
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeSerial))

	actions := []plan.Action{
		poolCreateAction("k8s-pool"),
		{Type: plan.ActionCreate, Kind: plan.ActionKindNetwork, Name: "k8s-net",
			Resource: state.Network{Name: "k8s-net", Mode: state.NetworkModeNAT, Addresses: []string{"10.17.3.0/24"}}},
	}

	r, err := e.Run(context.Background(), actions, testDocForExecutor())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if r.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s", r.Outcome)
	}
	if r.Summary.Successful != 2 {
		t.Fatalf("expected 2 successful actions, got %+v", r.Summary)
	}

	snap := mock.Snapshot()
	if len(snap.Pools) != 1 || len(snap.Networks) != 1 {
		t.Fatalf("expected pool and network to exist on the mock, got %+v", snap)
	}
}

func TestRun_Serial_StopsOnFirstFailureWithoutContinueOnError(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.FailOn = func(operation, kind, name string) error {
		if kind == "pool" && name == "bad-pool" {
			return errs.CommandFailed("virsh pool-define", 1, "boom", nil)
		}
		return nil
	}
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeSerial))

	actions := []plan.Action{poolCreateAction("bad-pool"), poolCreateAction("good-pool")}

	r, err := e.Run(context.Background(), actions, testDocForExecutor())
	if err == nil {
		t.Fatal("expected an error from the failing action")
	}
	if r.Summary.Failed != 1 || r.Summary.Successful != 0 {
		t.Fatalf("expected the run to stop after the first failure, got %+v", r.Summary)
	}

	snap := mock.Snapshot()
	if len(snap.Pools) != 0 {
		t.Fatalf("expected no pools created after the run stopped, got %+v", snap.Pools)
	}
}

func TestRun_Serial_ContinueOnErrorYieldsPartialSuccess(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.FailOn = func(operation, kind, name string) error {
		if name == "bad-pool" {
			return errs.CommandFailed("virsh pool-define", 1, "boom", nil)
		}
		return nil
	}
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeSerial), WithContinueOnError(true))

	actions := []plan.Action{poolCreateAction("bad-pool"), poolCreateAction("good-pool")}

	r, err := e.Run(context.Background(), actions, testDocForExecutor())
	if err != nil {
		t.Fatalf("continue_on_error run should not return an error, got %v", err)
	}
	if r.Outcome != OutcomePartialSuccess {
		t.Fatalf("expected partial_success, got %s", r.Outcome)
	}
	if r.Summary.Failed != 1 || r.Summary.Successful != 1 {
		t.Fatalf("expected 1 failed and 1 successful action, got %+v", r.Summary)
	}
}

func TestRun_Rollback_UndoesCompletedCreatesOnFailure(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.FailOn = func(operation, kind, name string) error {
		if operation == "create" && name == "second-pool" {
			return errs.CommandFailed("virsh pool-define", 1, "boom", nil)
		}
		return nil
	}
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeSerial), WithRollback(true))

	actions := []plan.Action{poolCreateAction("first-pool"), poolCreateAction("second-pool")}

	_, err := e.Run(context.Background(), actions, testDocForExecutor())
	if err == nil {
		t.Fatal("expected an error from the failing action")
	}

	snap := mock.Snapshot()
	if len(snap.Pools) != 0 {
		t.Fatalf("expected rollback to delete the pool created before the failure, got %+v", snap.Pools)
	}
}

func TestRun_Parallel_FailureInLevelStopsSubsequentLevels(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.FailOn = func(operation, kind, name string) error {
		if name == "bad-pool" {
			return errs.CommandFailed("virsh pool-define", 1, "boom", nil)
		}
		return nil
	}
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeParallel))

	actions := []plan.Action{
		poolCreateAction("good-pool-1"),
		poolCreateAction("bad-pool"),
		poolCreateAction("good-pool-2"),
		{Type: plan.ActionCreate, Kind: plan.ActionKindNetwork, Name: "k8s-net",
			Resource: state.Network{Name: "k8s-net", Mode: state.NetworkModeNAT, Addresses: []string{"10.17.3.0/24"}}},
	}

	r, err := e.Run(context.Background(), actions, testDocForExecutor())
	if err == nil {
		t.Fatal("expected an error from the failing pool create")
	}
	if r.Summary.Successful != 2 || r.Summary.Failed != 1 {
		t.Fatalf("expected 2 successes and 1 failure in the pool level, got %+v", r.Summary)
	}

	snap := mock.Snapshot()
	if len(snap.Networks) != 0 {
		t.Fatalf("expected the network level to never start after the pool level failed, got %+v", snap.Networks)
	}
}

func TestRun_PreExecutionValidation_RejectsNilResourceBeforeAnySideEffect(t *testing.T) {
	mock := adapter.NewMockAdapter()
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeSerial))

	actions := []plan.Action{
		{Type: plan.ActionCreate, Kind: plan.ActionKindPool, Name: "bad", Resource: nil},
		poolCreateAction("good-pool"),
	}

	_, err := e.Run(context.Background(), actions, testDocForExecutor())
	if err == nil {
		t.Fatal("expected pre-execution validation to reject a nil-resource action")
	}

	snap := mock.Snapshot()
	if len(snap.Pools) != 0 {
		t.Fatalf("expected no side effects before validation rejects the plan, got %+v", snap.Pools)
	}
}

func TestRun_Skip_UpdateActionsAreLoggedNotDispatched(t *testing.T) {
	mock := adapter.NewMockAdapter()
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeSerial))

	actions := []plan.Action{
		{Type: plan.ActionUpdate, Kind: plan.ActionKindPool, Name: "p", Resource: state.Pool{Name: "p"}},
	}

	r, err := e.Run(context.Background(), actions, testDocForExecutor())
	if err != nil {
		t.Fatalf("update actions should never fail, got %v", err)
	}
	if r.Summary.Skipped != 1 {
		t.Fatalf("expected the update action to be skipped, got %+v", r.Summary)
	}
}

func TestRun_Cancelled_StopsBeforeLaunchingRemainingLevels(t *testing.T) {
	mock := adapter.NewMockAdapter()
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeParallel))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	actions := []plan.Action{poolCreateAction("p1")}

	r, err := e.Run(ctx, actions, testDocForExecutor())
	if err != nil {
		t.Fatalf("cancellation is a non-error outcome, got error %v", err)
	}
	if r.Outcome != OutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %s", r.Outcome)
	}
}

// TestRun_Serial_CreateDomainUsesGeneratedCloudInitISO exercises the full
// create-domain dispatch path, including the Cloud-Init Generator call,
// against a master node synthesized the way synth.Synthesize would.
func TestRun_Serial_CreateDomainUsesGeneratedCloudInitISO(t *testing.T) {
	mock := adapter.NewMockAdapter()
	gen := cloudinit.NewGenerator(hclog.NewNullLogger())
	e := New(mock, gen, WithMode(ModeSerial))

	volumeAction := plan.Action{
		Type: plan.ActionCreate, Kind: plan.ActionKindVolume, Name: "romulus-master-1-init.iso",
		Resource: state.NewCloudInitVolume("romulus-master-1-init.iso", "k8s-pool", "master", 1),
	}
	domainAction := plan.Action{
		Type: plan.ActionCreate, Kind: plan.ActionKindDomain, Name: "romulus-master-1",
		Resource: state.Domain{
			Name: "romulus-master-1", MemoryMiB: 2048, VCPU: 2, Pool: "k8s-pool", Network: "k8s-net",
			DiskVolume: "romulus-master-1-disk", IPAddress: "10.17.3.11", State: state.DomainRunning,
		},
	}

	r, err := e.Run(context.Background(), []plan.Action{volumeAction, domainAction}, testDocForExecutor())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if r.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s: %+v", r.Outcome, r.Summary.Errors)
	}

	snap := mock.Snapshot()
	if len(snap.Domains) != 1 || snap.Domains[0].Name != "romulus-master-1" {
		t.Fatalf("expected the domain to be created, got %+v", snap.Domains)
	}
}

func TestIsSkipped(t *testing.T) {
	if !isSkipped(plan.Action{Type: plan.ActionUpdate, Kind: plan.ActionKindPool}) {
		t.Fatal("expected update actions to be skipped")
	}
	if !isSkipped(plan.Action{Type: plan.ActionCreate, Kind: plan.ActionKind("bogus")}) {
		t.Fatal("expected unrecognized kinds to be skipped")
	}
	if isSkipped(plan.Action{Type: plan.ActionCreate, Kind: plan.ActionKindPool}) {
		t.Fatal("expected a recognized create action not to be skipped")
	}
}

func TestParseNodeIdentity(t *testing.T) {
	nodeType, index, err := parseNodeIdentity("romulus-worker-3")
	if err != nil {
		t.Fatalf("parseNodeIdentity returned error: %v", err)
	}
	if nodeType != "worker" || index != 3 {
		t.Fatalf("expected worker/3, got %s/%d", nodeType, index)
	}

	if _, _, err := parseNodeIdentity("not-a-domain-name-at-all-xyz"); err == nil {
		t.Fatal("expected an error for a non-numeric trailing segment")
	}
}

func TestSummarize_CountsMatchResults(t *testing.T) {
	results := []ActionResult{
		{Action: poolCreateAction("a")},
		{Action: poolCreateAction("b"), Err: errs.CommandFailed("x", 1, "", nil)},
		{Action: poolCreateAction("c"), Skipped: true},
	}
	s := summarize(results, time.Now())
	if s.Total != 3 || s.Successful != 1 || s.Failed != 1 || s.Skipped != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
