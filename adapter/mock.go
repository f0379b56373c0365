// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"context"
	"sync"

	"github.com/somatczk/romulus/errs"
	"github.com/somatczk/romulus/state"
)

// FailOn is an optional hook MockAdapter consults before every create or
// delete, letting tests rig a specific resource to fail.
type FailOn func(operation, kind, name string) error

// MockAdapter is an in-memory Adapter used by the executor's tests and the
// six-concurrent-run race contract. All state is protected by a mutex so
// that concurrent Executors driving the same mock do not corrupt it.
type MockAdapter struct {
	mu sync.Mutex

	networks map[string]state.Network
	pools    map[string]state.Pool
	volumes  map[string]state.Volume
	domains  map[string]state.Domain

	FailOn FailOn
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		networks: map[string]state.Network{},
		pools:    map[string]state.Pool{},
		volumes:  map[string]state.Volume{},
		domains:  map[string]state.Domain{},
	}
}

// Seed populates the mock's current state, e.g. to represent an existing
// hypervisor before exercising a plan against it.
func (m *MockAdapter) Seed(s state.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range s.Networks {
		m.networks[n.Name] = n
	}
	for _, p := range s.Pools {
		m.pools[p.Name] = p
	}
	for _, v := range s.Volumes {
		m.volumes[v.Name] = v
	}
	for _, d := range s.Domains {
		m.domains[d.Name] = d
	}
}

// Snapshot returns the mock's current state as observed by the Discoverer
// (collection order is the map's iteration order, which is not part of
// any contract the mock needs to honor for its tests).
func (m *MockAdapter) Snapshot() state.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := state.State{}
	for _, n := range m.networks {
		s.Networks = append(s.Networks, n)
	}
	for _, p := range m.pools {
		s.Pools = append(s.Pools, p)
	}
	for _, v := range m.volumes {
		s.Volumes = append(s.Volumes, v)
	}
	for _, d := range m.domains {
		s.Domains = append(s.Domains, d)
	}
	return s
}

func (m *MockAdapter) checkFailure(operation, kind, name string) error {
	if m.FailOn == nil {
		return nil
	}
	return m.FailOn(operation, kind, name)
}

func (m *MockAdapter) ListNetworks(ctx context.Context) ([]state.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]state.Network, 0, len(m.networks))
	for _, n := range m.networks {
		out = append(out, n)
	}
	return out, nil
}

func (m *MockAdapter) ListPools(ctx context.Context) ([]state.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]state.Pool, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockAdapter) ListVolumes(ctx context.Context, pools []state.Pool) ([]state.Volume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]state.Volume, 0, len(m.volumes))
	for _, v := range m.volumes {
		out = append(out, v)
	}
	return out, nil
}

func (m *MockAdapter) ListDomains(ctx context.Context) ([]state.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]state.Domain, 0, len(m.domains))
	for _, d := range m.domains {
		out = append(out, d)
	}
	return out, nil
}

func (m *MockAdapter) CreateNetwork(ctx context.Context, n state.Network) error {
	if err := m.checkFailure("create", "network", n.Name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.networks[n.Name]; ok {
		return errs.ResourceExists("network", n.Name)
	}
	n.Active = true
	m.networks[n.Name] = n
	return nil
}

func (m *MockAdapter) DeleteNetwork(ctx context.Context, name string) error {
	if err := m.checkFailure("delete", "network", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.networks[name]; !ok {
		return errs.ResourceNotFound("network", name)
	}
	delete(m.networks, name)
	return nil
}

func (m *MockAdapter) NetworkExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.networks[name]
	return ok, nil
}

func (m *MockAdapter) CreatePool(ctx context.Context, p state.Pool) error {
	if err := m.checkFailure("create", "pool", p.Name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[p.Name]; ok {
		return errs.ResourceExists("pool", p.Name)
	}
	p.Active = true
	m.pools[p.Name] = p
	return nil
}

func (m *MockAdapter) DeletePool(ctx context.Context, name string) error {
	if err := m.checkFailure("delete", "pool", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[name]; !ok {
		return errs.ResourceNotFound("pool", name)
	}
	delete(m.pools, name)
	return nil
}

func (m *MockAdapter) PoolExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pools[name]
	return ok, nil
}

func (m *MockAdapter) CreateVolume(ctx context.Context, v state.Volume) error {
	if err := m.checkFailure("create", "volume", v.Name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.volumes[v.Name]; ok {
		return errs.ResourceExists("volume", v.Name)
	}
	m.volumes[v.Name] = v
	return nil
}

func (m *MockAdapter) DeleteVolume(ctx context.Context, pool, name string) error {
	if err := m.checkFailure("delete", "volume", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.volumes[name]; !ok {
		return errs.ResourceNotFound("volume", name)
	}
	delete(m.volumes, name)
	return nil
}

func (m *MockAdapter) VolumeExists(ctx context.Context, pool, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.volumes[name]
	return ok, nil
}

func (m *MockAdapter) CreateDomain(ctx context.Context, d state.Domain, cloudInitISOPath string) error {
	if err := m.checkFailure("create", "domain", d.Name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[d.Name]; ok {
		return errs.ResourceExists("domain", d.Name)
	}
	d.State = state.DomainRunning
	m.domains[d.Name] = d
	return nil
}

func (m *MockAdapter) DeleteDomain(ctx context.Context, name string) error {
	if err := m.checkFailure("delete", "domain", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[name]; !ok {
		return errs.ResourceNotFound("domain", name)
	}
	delete(m.domains, name)
	return nil
}

func (m *MockAdapter) DomainExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.domains[name]
	return ok, nil
}

var _ Adapter = (*MockAdapter)(nil)
