// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package synth

import (
	"reflect"
	"testing"

	"github.com/somatczk/romulus/config"
)

func baseDoc() config.Document {
	return config.Document{
		Cluster: config.Cluster{Name: "romulus", Domain: "cluster.local"},
		Network: config.Network{Name: "k8s-net", Mode: "nat", CIDR: "10.17.3.0/24", DHCP: true},
		Storage: config.Storage{
			PoolName: "k8s-pool", PoolPath: "/var/lib/romulus/pool",
			BaseImage: config.BaseImage{Name: "base-image", URL: "https://example.test/image.qcow2", Format: "qcow2"},
		},
	}
}

func TestSynthesize_ZeroRoleCountsProduceOnlyBaseVolume(t *testing.T) {
	s := Synthesize(baseDoc())

	if len(s.Networks) != 1 || len(s.Pools) != 1 {
		t.Fatalf("expected exactly one network and one pool, got %+v", s)
	}
	if len(s.Volumes) != 1 {
		t.Fatalf("expected only the base volume with zero role counts, got %d volumes", len(s.Volumes))
	}
	if len(s.Domains) != 0 {
		t.Fatalf("expected no domains with zero role counts, got %d", len(s.Domains))
	}
}

func TestSynthesize_NilAndZeroCountBehaveIdentically(t *testing.T) {
	doc := baseDoc()
	withZero := Synthesize(doc)

	doc.Nodes.Masters.Count = 0
	doc.Nodes.Workers.Count = 0
	withExplicitZero := Synthesize(doc)

	if !reflect.DeepEqual(withZero, withExplicitZero) {
		t.Fatal("expected a nil/unset role count to synthesize identically to an explicit 0")
	}
}

func TestSynthesize_OneMasterOneWorker(t *testing.T) {
	doc := baseDoc()
	doc.Nodes.Masters = config.Role{Count: 1, MemoryMiB: 2048, VCPU: 2, DiskBytes: 20 << 30, IPPrefix: "10.17.3.1"}
	doc.Nodes.Workers = config.Role{Count: 1, MemoryMiB: 4096, VCPU: 4, DiskBytes: 40 << 30, IPPrefix: "10.17.3.2"}

	s := Synthesize(doc)

	if len(s.Volumes) != 5 { // base + (disk, init) x 2 roles
		t.Fatalf("expected 5 volumes, got %d: %+v", len(s.Volumes), s.Volumes)
	}
	if len(s.Domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(s.Domains))
	}

	master := s.Domains[0]
	if master.Name != "romulus-master-1" || master.DiskVolume != "romulus-master-1-disk" || master.IPAddress != "10.17.3.11" {
		t.Fatalf("unexpected master domain: %+v", master)
	}
}

func TestSynthesize_IsPure(t *testing.T) {
	doc := baseDoc()
	doc.Nodes.Masters.Count = 3

	first := Synthesize(doc)
	second := Synthesize(doc)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical input to synthesize identical output")
	}
}
