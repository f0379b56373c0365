// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package state

import (
	"time"

	"github.com/hashicorp/go-multierror"
)

// Kind names a resource kind, used as the key into per-kind diff bags and
// in validation error context.
type Kind string

const (
	KindNetwork Kind = "network"
	KindPool    Kind = "pool"
	KindVolume  Kind = "volume"
	KindDomain  Kind = "domain"
)

// State is the full set of resources known at a point in time, either
// discovered from the hypervisor or synthesized from configuration.
// Collection order is part of the contract: callers that iterate a State
// see resources in the order they were appended, not name order.
type State struct {
	Networks []Network
	Pools    []Pool
	Volumes  []Volume
	Domains  []Domain

	// DiscoveredAt is the zero time for synthesized (desired) state, and
	// the time the Discoverer finished its four listing calls for
	// observed (current) state.
	DiscoveredAt time.Time
}

// Empty returns a State with no resources and a zero DiscoveredAt.
func Empty() State {
	return State{}
}

func (s State) networkNames() nameSet {
	names := make([]string, len(s.Networks))
	for i, n := range s.Networks {
		names[i] = n.Name
	}
	return newNameSet(names...)
}

func (s State) poolNames() nameSet {
	names := make([]string, len(s.Pools))
	for i, p := range s.Pools {
		names[i] = p.Name
	}
	return newNameSet(names...)
}

func (s State) volumeNames() nameSet {
	names := make([]string, len(s.Volumes))
	for i, v := range s.Volumes {
		names[i] = v.Name
	}
	return newNameSet(names...)
}

func (s State) domainNames() nameSet {
	names := make([]string, len(s.Domains))
	for i, d := range s.Domains {
		names[i] = d.Name
	}
	return newNameSet(names...)
}

// KindDiff is the per-kind result of comparing two States: names present
// only in the desired state, names present only in the current state, and
// names present in both.
type KindDiff struct {
	Added   []string
	Removed []string
	Common  []string
}

// Diff is the full comparison of a current state against a desired state,
// broken down per kind, plus totals across all four kinds.
type Diff struct {
	Networks KindDiff
	Pools    KindDiff
	Volumes  KindDiff
	Domains  KindDiff

	TotalAdded   int
	TotalRemoved int
	TotalCommon  int
}

func diffKind(current, desired nameSet) KindDiff {
	return KindDiff{
		Added:   difference(desired, current),
		Removed: difference(current, desired),
		Common:  intersection(current, desired),
	}
}

// CompareStates diffs current against desired per kind. For any s,
// diff(s, s) has empty Added and Removed bags for every kind; its Common
// bags then hold every name in s.
func CompareStates(current, desired State) Diff {
	d := Diff{
		Networks: diffKind(current.networkNames(), desired.networkNames()),
		Pools:    diffKind(current.poolNames(), desired.poolNames()),
		Volumes:  diffKind(current.volumeNames(), desired.volumeNames()),
		Domains:  diffKind(current.domainNames(), desired.domainNames()),
	}

	for _, kd := range []KindDiff{d.Networks, d.Pools, d.Volumes, d.Domains} {
		d.TotalAdded += len(kd.Added)
		d.TotalRemoved += len(kd.Removed)
		d.TotalCommon += len(kd.Common)
	}

	return d
}

// Counts summarizes the size of a State, broken down per kind, with active
// subtotals for the kinds that track an active/inactive flag.
type Counts struct {
	Networks, NetworksActive int
	Pools, PoolsActive       int
	Volumes                  int
	Domains, DomainsRunning  int
}

func CountState(s State) Counts {
	c := Counts{
		Networks: len(s.Networks),
		Pools:    len(s.Pools),
		Volumes:  len(s.Volumes),
		Domains:  len(s.Domains),
	}
	for _, n := range s.Networks {
		if n.Active {
			c.NetworksActive++
		}
	}
	for _, p := range s.Pools {
		if p.Active {
			c.PoolsActive++
		}
	}
	for _, d := range s.Domains {
		if d.State == DomainRunning {
			c.DomainsRunning++
		}
	}
	return c
}

// Validate checks the referential and uniqueness invariants that must
// hold for any State, whether discovered or synthesized:
//   - names are unique within each kind
//   - every Domain's network and pool reference an existing Network/Pool
//   - every Volume's pool references an existing Pool
//   - every Volume with base-volume provenance references a Volume in the
//     same pool that itself has no base volume (base images are terminal)
//   - every Volume has exactly one provenance set
func Validate(s State) error {
	var merr *multierror.Error

	seenNetworks := map[string]bool{}
	for _, n := range s.Networks {
		if seenNetworks[n.Name] {
			merr = multierror.Append(merr, duplicateNameErr(KindNetwork, n.Name))
			continue
		}
		seenNetworks[n.Name] = true
	}

	seenPools := map[string]bool{}
	for _, p := range s.Pools {
		if seenPools[p.Name] {
			merr = multierror.Append(merr, duplicateNameErr(KindPool, p.Name))
			continue
		}
		seenPools[p.Name] = true
	}

	volumesByName := map[string]Volume{}
	volumesByPool := map[string]map[string]bool{}
	for _, v := range s.Volumes {
		if _, dup := volumesByName[v.Name]; dup {
			merr = multierror.Append(merr, duplicateNameErr(KindVolume, v.Name))
			continue
		}
		volumesByName[v.Name] = v

		if v.Provenance == ProvenanceInvalid {
			merr = multierror.Append(merr, validationErr(KindVolume, v.Name, "volume has no provenance set"))
		}

		if !seenPools[v.Pool] {
			merr = multierror.Append(merr, missingRefErr(KindVolume, v.Name, KindPool, v.Pool))
		} else {
			if volumesByPool[v.Pool] == nil {
				volumesByPool[v.Pool] = map[string]bool{}
			}
			volumesByPool[v.Pool][v.Name] = true
		}
	}

	for _, v := range s.Volumes {
		if v.Provenance != ProvenanceBaseVolume {
			continue
		}
		base, ok := volumesByName[v.BaseVolume]
		if !ok {
			merr = multierror.Append(merr, missingRefErr(KindVolume, v.Name, KindVolume, v.BaseVolume))
			continue
		}
		if base.Pool != v.Pool {
			merr = multierror.Append(merr, validationErr(KindVolume, v.Name,
				"base volume \""+v.BaseVolume+"\" belongs to a different pool"))
		}
		if base.Provenance == ProvenanceBaseVolume {
			merr = multierror.Append(merr, validationErr(KindVolume, v.Name,
				"base volume \""+v.BaseVolume+"\" is itself a clone; base volumes must be terminal"))
		}
	}

	seenDomains := map[string]bool{}
	for _, d := range s.Domains {
		if seenDomains[d.Name] {
			merr = multierror.Append(merr, duplicateNameErr(KindDomain, d.Name))
			continue
		}
		seenDomains[d.Name] = true

		if !seenNetworks[d.Network] {
			merr = multierror.Append(merr, missingRefErr(KindDomain, d.Name, KindNetwork, d.Network))
		}
		if !seenPools[d.Pool] {
			merr = multierror.Append(merr, missingRefErr(KindDomain, d.Name, KindPool, d.Pool))
		}
		if d.DiskVolume != "" {
			if _, ok := volumesByName[d.DiskVolume]; !ok {
				merr = multierror.Append(merr, missingRefErr(KindDomain, d.Name, KindVolume, d.DiskVolume))
			}
		}
	}

	return merr.ErrorOrNil()
}
