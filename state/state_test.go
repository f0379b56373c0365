// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package state

import (
	"reflect"
	"testing"
)

func network(name string) Network { return Network{Name: name, Mode: NetworkModeNAT, Active: true} }
func pool(name string) Pool       { return Pool{Name: name, Type: "dir", Active: true} }

func TestCompareStates_Identity(t *testing.T) {
	s := State{
		Networks: []Network{network("k8s-net")},
		Pools:    []Pool{pool("k8s-pool")},
		Volumes:  []Volume{NewSizedVolume("base", "k8s-pool", "qcow2", 1<<30)},
		Domains:  []Domain{{Name: "master-0", Network: "k8s-net", Pool: "k8s-pool"}},
	}

	d := CompareStates(s, s)

	for _, kd := range []KindDiff{d.Networks, d.Pools, d.Volumes, d.Domains} {
		if len(kd.Added) != 0 || len(kd.Removed) != 0 {
			t.Fatalf("diffing a state against itself produced added/removed: %+v", kd)
		}
	}
	if d.TotalAdded != 0 || d.TotalRemoved != 0 {
		t.Fatalf("diffing a state against itself produced nonzero totals: %+v", d)
	}
}

func TestCompareStates_EmptyVsEmpty(t *testing.T) {
	d := CompareStates(Empty(), Empty())
	if d.TotalAdded != 0 || d.TotalRemoved != 0 || d.TotalCommon != 0 {
		t.Fatalf("expected a zero-valued diff, got %+v", d)
	}
}

func TestCompareStates_AddedAndRemoved(t *testing.T) {
	current := State{Pools: []Pool{pool("old")}}
	desired := State{Pools: []Pool{pool("new")}}

	d := CompareStates(current, desired)

	if !reflect.DeepEqual(d.Pools.Added, []string{"new"}) {
		t.Fatalf("expected Added=[new], got %v", d.Pools.Added)
	}
	if !reflect.DeepEqual(d.Pools.Removed, []string{"old"}) {
		t.Fatalf("expected Removed=[old], got %v", d.Pools.Removed)
	}
	if len(d.Pools.Common) != 0 {
		t.Fatalf("expected no common pools, got %v", d.Pools.Common)
	}
}

func TestValidate_Empty(t *testing.T) {
	if err := Validate(Empty()); err != nil {
		t.Fatalf("an empty state should be valid, got %v", err)
	}
}

func TestValidate_DanglingReferences(t *testing.T) {
	s := State{
		Domains: []Domain{{Name: "master-0", Network: "missing-net", Pool: "missing-pool"}},
	}

	err := Validate(s)
	if err == nil {
		t.Fatal("expected validation error for dangling network/pool references")
	}
}

func TestValidate_ChainedBaseVolumeRejected(t *testing.T) {
	s := State{
		Pools: []Pool{pool("k8s-pool")},
		Volumes: []Volume{
			NewSizedVolume("base", "k8s-pool", "qcow2", 1<<30),
			NewClonedVolume("mid", "k8s-pool", "qcow2", "base", 1<<30),
			NewClonedVolume("leaf", "k8s-pool", "qcow2", "mid", 1<<30),
		},
	}

	if err := Validate(s); err == nil {
		t.Fatal("expected validation error: base volumes must be terminal, not chained")
	}
}

func TestValidate_DuplicateNames(t *testing.T) {
	s := State{Pools: []Pool{pool("dup"), pool("dup")}}

	if err := Validate(s); err == nil {
		t.Fatal("expected validation error for duplicate pool names")
	}
}

func TestCountState(t *testing.T) {
	s := State{
		Networks: []Network{{Name: "a", Active: true}, {Name: "b", Active: false}},
		Pools:    []Pool{{Name: "p", Active: true}},
		Domains:  []Domain{{Name: "d1", State: DomainRunning}, {Name: "d2", State: DomainStopped}},
	}

	c := CountState(s)
	if c.Networks != 2 || c.NetworksActive != 1 {
		t.Fatalf("unexpected network counts: %+v", c)
	}
	if c.Domains != 2 || c.DomainsRunning != 1 {
		t.Fatalf("unexpected domain counts: %+v", c)
	}
}
