// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package plan implements the Planner: it diffs a current state.State
// against a desired one, emits an ordered list of Actions, and can fuse
// redundant create/destroy pairs and validate dependency ordering. The
// Planner performs no I/O.
package plan

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/state"
)

// ActionType is one of create, update, or destroy.
type ActionType string

const (
	ActionCreate  ActionType = "create"
	ActionUpdate  ActionType = "update"
	ActionDestroy ActionType = "destroy"
)

// ActionKind is the resource kind an Action targets. ActionKindCloudInit
// has no corresponding state.State collection; it exists only as a
// placeholder the present planner never emits (see Build).
type ActionKind string

const (
	ActionKindPool      ActionKind = "pool"
	ActionKindNetwork   ActionKind = "network"
	ActionKindVolume    ActionKind = "volume"
	ActionKindDomain    ActionKind = "domain"
	ActionKindCloudInit ActionKind = "cloudinit"
)

// kindOrder is the dependency order used for sorting creates. The
// Executor's parallel-mode levels use the same order through their own
// table in the executor package.
var kindOrder = map[ActionKind]int{
	ActionKindPool:    0,
	ActionKindNetwork: 1,
	ActionKindVolume:  2,
	ActionKindDomain:  3,
}

// Action is one atomic step in a plan.
type Action struct {
	Type     ActionType
	Kind     ActionKind
	Name     string
	Resource any // state.Network, state.Pool, state.Volume, or state.Domain
	Reason   string
}

// Build diffs current against desired and returns a sorted, unoptimized
// plan: every name in desired-but-not-current becomes a create, every
// name in current-but-not-desired becomes a destroy. update is reserved
// for future use and is never emitted here.
func Build(current, desired state.State) []Action {
	d := state.CompareStates(current, desired)

	desiredPools := indexPools(desired.Pools)
	desiredNetworks := indexNetworks(desired.Networks)
	desiredVolumes := indexVolumes(desired.Volumes)
	desiredDomains := indexDomains(desired.Domains)

	currentPools := indexPools(current.Pools)
	currentNetworks := indexNetworks(current.Networks)
	currentVolumes := indexVolumes(current.Volumes)
	currentDomains := indexDomains(current.Domains)

	var actions []Action

	for _, name := range d.Pools.Added {
		actions = append(actions, Action{ActionCreate, ActionKindPool, name, desiredPools[name], "desired state requires this pool"})
	}
	for _, name := range d.Networks.Added {
		actions = append(actions, Action{ActionCreate, ActionKindNetwork, name, desiredNetworks[name], "desired state requires this network"})
	}
	for _, name := range d.Volumes.Added {
		actions = append(actions, Action{ActionCreate, ActionKindVolume, name, desiredVolumes[name], "desired state requires this volume"})
	}
	for _, name := range d.Domains.Added {
		actions = append(actions, Action{ActionCreate, ActionKindDomain, name, desiredDomains[name], "desired state requires this domain"})
	}

	for _, name := range d.Pools.Removed {
		actions = append(actions, Action{ActionDestroy, ActionKindPool, name, currentPools[name], "not present in desired state"})
	}
	for _, name := range d.Networks.Removed {
		actions = append(actions, Action{ActionDestroy, ActionKindNetwork, name, currentNetworks[name], "not present in desired state"})
	}
	for _, name := range d.Volumes.Removed {
		actions = append(actions, Action{ActionDestroy, ActionKindVolume, name, currentVolumes[name], "not present in desired state"})
	}
	for _, name := range d.Domains.Removed {
		actions = append(actions, Action{ActionDestroy, ActionKindDomain, name, currentDomains[name], "not present in desired state"})
	}

	Sort(actions)
	return actions
}

// Sort orders a plan so creates precede destroys, and within creates,
// pool -> network -> volume -> domain. It is stable, so callers that rely
// on a deterministic tie-break (e.g. name order within a kind) should
// presort the input accordingly.
func Sort(actions []Action) {
	stableSort(actions, func(a, b Action) bool {
		if (a.Type == ActionCreate) != (b.Type == ActionCreate) {
			return a.Type == ActionCreate
		}
		if a.Type == ActionCreate && a.Kind != b.Kind {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		return false
	})
}

// Optimize fuses a create and a destroy that target the same (kind, name)
// — both are dropped, since they cancel out — then re-sorts the result.
func Optimize(actions []Action) []Action {
	destroyed := map[string]bool{}
	created := map[string]bool{}
	for _, a := range actions {
		key := string(a.Kind) + "/" + a.Name
		if a.Type == ActionDestroy {
			destroyed[key] = true
		}
		if a.Type == ActionCreate {
			created[key] = true
		}
	}

	var out []Action
	for _, a := range actions {
		key := string(a.Kind) + "/" + a.Name
		if created[key] && destroyed[key] {
			continue
		}
		out = append(out, a)
	}

	Sort(out)
	return out
}

// Validate rejects a plan whose create actions violate dependency order:
// a create volume must not precede its pool's create pool (unless that
// pool already exists in current), and no create domain may precede any
// create volume.
func Validate(actions []Action, current state.State) error {
	var merr *multierror.Error

	currentPoolNames := map[string]bool{}
	for _, p := range current.Pools {
		currentPoolNames[p.Name] = true
	}

	poolCreated := map[string]bool{}
	firstDomainCreated := ""

	for _, a := range actions {
		switch {
		case a.Type == ActionCreate && a.Kind == ActionKindPool:
			poolCreated[a.Name] = true

		case a.Type == ActionCreate && a.Kind == ActionKindVolume:
			v, ok := a.Resource.(state.Volume)
			if ok && !currentPoolNames[v.Pool] && !poolCreated[v.Pool] {
				merr = multierror.Append(merr, errs.PlanDependencyViolation(
					"create volume "+a.Name, "pool \""+v.Pool+"\" is not created before this volume"))
			}
			if firstDomainCreated != "" {
				merr = multierror.Append(merr, errs.PlanDependencyViolation(
					"create domain "+firstDomainCreated, "domain is created before volume \""+a.Name+"\""))
			}

		case a.Type == ActionCreate && a.Kind == ActionKindDomain:
			if firstDomainCreated == "" {
				firstDomainCreated = a.Name
			}
		}
	}

	return merr.ErrorOrNil()
}

// Stats summarizes a plan: per-kind/per-type counts and an estimated
// wall-clock duration.
type Stats struct {
	Total            int
	Creates, Updates, Destroys int
	ByKind           map[ActionKind]int
	EstimatedElapsed time.Duration
}

var estimatedDuration = map[ActionKind]time.Duration{
	ActionKindPool:    1 * time.Minute,
	ActionKindNetwork: 1 * time.Minute,
	ActionKindVolume:  5 * time.Minute,
	ActionKindDomain:  3 * time.Minute,
}

const parallelismDiscount = 0.6

func ComputeStats(actions []Action) Stats {
	s := Stats{Total: len(actions), ByKind: map[ActionKind]int{}}

	var raw time.Duration
	for _, a := range actions {
		switch a.Type {
		case ActionCreate:
			s.Creates++
		case ActionUpdate:
			s.Updates++
		case ActionDestroy:
			s.Destroys++
		}
		s.ByKind[a.Kind]++
		raw += estimatedDuration[a.Kind]
	}

	discounted := time.Duration(float64(raw) * parallelismDiscount)
	if discounted < time.Minute && s.Total > 0 {
		discounted = time.Minute
	}
	s.EstimatedElapsed = discounted

	return s
}

func indexPools(pools []state.Pool) map[string]any {
	m := make(map[string]any, len(pools))
	for _, p := range pools {
		m[p.Name] = p
	}
	return m
}

func indexNetworks(networks []state.Network) map[string]any {
	m := make(map[string]any, len(networks))
	for _, n := range networks {
		m[n.Name] = n
	}
	return m
}

func indexVolumes(volumes []state.Volume) map[string]any {
	m := make(map[string]any, len(volumes))
	for _, v := range volumes {
		m[v.Name] = v
	}
	return m
}

func indexDomains(domains []state.Domain) map[string]any {
	m := make(map[string]any, len(domains))
	for _, d := range domains {
		m[d.Name] = d
	}
	return m
}

func stableSort(actions []Action, less func(a, b Action) bool) {
	// insertion sort: plans are small (tens of actions), and stability
	// matters more than asymptotic complexity here.
	for i := 1; i < len(actions); i++ {
		for j := i; j > 0 && less(actions[j], actions[j-1]); j-- {
			actions[j], actions[j-1] = actions[j-1], actions[j]
		}
	}
}
