// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package discover implements the State Discoverer: it asks an adapter
// for every resource kind the hypervisor currently holds and assembles
// the result into a state.State.
package discover

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/somatczk/romulus/adapter"
	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/state"
)

// Discoverer lists the current state of a hypervisor through an Adapter.
type Discoverer struct {
	adapter adapter.Adapter
	logger  hclog.Logger
}

func New(a adapter.Adapter, logger hclog.Logger) *Discoverer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Discoverer{adapter: a, logger: logger.Named("discover")}
}

// Discover lists networks, pools, volumes, then domains, in that order,
// stopping at the first adapter failure.
func (d *Discoverer) Discover(ctx context.Context) (state.State, error) {
	networks, err := d.adapter.ListNetworks(ctx)
	if err != nil {
		return state.Empty(), errs.StateDiscoveryFailed(string(state.KindNetwork), err)
	}

	pools, err := d.adapter.ListPools(ctx)
	if err != nil {
		return state.Empty(), errs.StateDiscoveryFailed(string(state.KindPool), err)
	}

	volumes, err := d.adapter.ListVolumes(ctx, pools)
	if err != nil {
		return state.Empty(), errs.StateDiscoveryFailed(string(state.KindVolume), err)
	}

	domains, err := d.adapter.ListDomains(ctx)
	if err != nil {
		return state.Empty(), errs.StateDiscoveryFailed(string(state.KindDomain), err)
	}

	s := state.State{
		Networks:     networks,
		Pools:        pools,
		Volumes:      volumes,
		Domains:      domains,
		DiscoveredAt: time.Now(),
	}

	d.logger.Info("discovered current state",
		"networks", len(networks), "pools", len(pools), "volumes", len(volumes), "domains", len(domains))

	return s, nil
}
