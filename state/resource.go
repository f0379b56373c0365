// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package state holds the canonical in-memory representation of the four
// libvirt resource kinds (Network, Pool, Volume, Domain), their
// referential invariants, and the diff/summary operations the Planner and
// Discoverer build on.
package state

// NetworkMode is the libvirt forwarding mode for a Network.
type NetworkMode string

const (
	NetworkModeNAT      NetworkMode = "nat"
	NetworkModeRoute    NetworkMode = "route"
	NetworkModeBridge   NetworkMode = "bridge"
	NetworkModeIsolated NetworkMode = "isolated"
)

// Network is a libvirt virtual network.
type Network struct {
	Name      string
	Mode      NetworkMode
	Domain    string
	Addresses []string
	DHCP      bool
	DNS       bool
	Active    bool
}

func (n Network) resourceName() string { return n.Name }

// Pool is a libvirt storage pool. Only the "dir" type is currently
// modeled, per spec.md §3.
type Pool struct {
	Name   string
	Type   string
	Path   string
	Active bool
}

func (p Pool) resourceName() string { return p.Name }

// VolumeProvenance is the tagged union distinguishing how a Volume's
// backing storage is created. Exactly one of the four cases applies;
// spec.md §9 is explicit that this must stay a variant rather than a bag
// of optional fields.
type VolumeProvenance int

const (
	// ProvenanceInvalid marks a zero-value Volume that hasn't been
	// constructed through one of the With* constructors.
	ProvenanceInvalid VolumeProvenance = iota
	ProvenanceSize
	ProvenanceBaseVolume
	ProvenanceSource
	ProvenanceCloudInit
)

// Volume is a libvirt storage volume. Construct with NewSizedVolume,
// NewClonedVolume, NewDownloadedVolume, or NewCloudInitVolume so the
// provenance invariant holds by construction.
type Volume struct {
	Name   string
	Pool   string
	Format string

	Provenance VolumeProvenance

	// Set only when Provenance == ProvenanceSize.
	SizeBytes uint64

	// Set only when Provenance == ProvenanceBaseVolume.
	BaseVolume string

	// Set only when Provenance == ProvenanceSource.
	Source string

	// Set only when Provenance == ProvenanceCloudInit.
	NodeType  string
	NodeIndex int
}

func (v Volume) resourceName() string { return v.Name }

func NewSizedVolume(name, pool, format string, sizeBytes uint64) Volume {
	return Volume{Name: name, Pool: pool, Format: format, Provenance: ProvenanceSize, SizeBytes: sizeBytes}
}

func NewClonedVolume(name, pool, format, baseVolume string, sizeBytes uint64) Volume {
	return Volume{Name: name, Pool: pool, Format: format, Provenance: ProvenanceBaseVolume, BaseVolume: baseVolume, SizeBytes: sizeBytes}
}

func NewDownloadedVolume(name, pool, format, source string) Volume {
	return Volume{Name: name, Pool: pool, Format: format, Provenance: ProvenanceSource, Source: source}
}

func NewCloudInitVolume(name, pool, nodeType string, nodeIndex int) Volume {
	return Volume{Name: name, Pool: pool, Format: "raw", Provenance: ProvenanceCloudInit, NodeType: nodeType, NodeIndex: nodeIndex}
}

// DomainState is the observed power state of a Domain.
type DomainState string

const (
	DomainRunning DomainState = "running"
	DomainStopped DomainState = "stopped"
	DomainPaused  DomainState = "paused"
	DomainUnknown DomainState = "unknown"
)

// Domain is a libvirt guest domain (a virtual machine).
type Domain struct {
	Name       string
	MemoryMiB  uint64
	VCPU       uint
	Pool       string
	Network    string
	DiskVolume string
	IPAddress  string
	State      DomainState
}

func (d Domain) resourceName() string { return d.Name }
