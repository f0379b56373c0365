// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package adapter is the boundary through which romulus talks to a
// hypervisor: list the resources it currently holds, create or delete
// them, and check whether a given resource exists. VirshAdapter is the
// default, shelling out to virsh and wget (cloud-init ISO images are built
// by the cloudinit package, not by the adapter); MockAdapter is an
// in-memory fake used by tests and the Executor's race-condition contract.
package adapter

import (
	"context"

	"github.com/somatczk/romulus/state"
)

// Adapter is the full set of hypervisor operations the Discoverer and
// Executor need. Every method is expected to respect ctx's deadline.
type Adapter interface {
	ListNetworks(ctx context.Context) ([]state.Network, error)
	ListPools(ctx context.Context) ([]state.Pool, error)
	ListVolumes(ctx context.Context, pools []state.Pool) ([]state.Volume, error)
	ListDomains(ctx context.Context) ([]state.Domain, error)

	CreateNetwork(ctx context.Context, n state.Network) error
	DeleteNetwork(ctx context.Context, name string) error
	NetworkExists(ctx context.Context, name string) (bool, error)

	CreatePool(ctx context.Context, p state.Pool) error
	DeletePool(ctx context.Context, name string) error
	PoolExists(ctx context.Context, name string) (bool, error)

	CreateVolume(ctx context.Context, v state.Volume) error
	DeleteVolume(ctx context.Context, pool, name string) error
	VolumeExists(ctx context.Context, pool, name string) (bool, error)

	// CreateDomain takes the already-materialized cloud-init ISO path;
	// the caller (the Executor) is responsible for invoking the
	// Cloud-Init Generator first.
	CreateDomain(ctx context.Context, d state.Domain, cloudInitISOPath string) error
	DeleteDomain(ctx context.Context, name string) error
	DomainExists(ctx context.Context, name string) (bool, error)
}
