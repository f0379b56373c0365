// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package synth implements the Desired-State Synthesizer: a pure fold
// from a validated config.Document to a state.State. Identical input
// always yields identical output, including collection order.
package synth

import (
	"fmt"

	"github.com/somatczk/romulus/config"
	"github.com/somatczk/romulus/state"
)

// Synthesize builds the desired state.State for doc: one Network, one
// Pool, the base-image Volume, then per-(role, index) boot-disk and
// cloud-init Volumes and Domains, in that order.
func Synthesize(doc config.Document) state.State {
	s := state.State{
		Networks: []state.Network{synthesizeNetwork(doc)},
		Pools:    []state.Pool{synthesizePool(doc)},
	}

	baseVolume := state.NewDownloadedVolume(doc.Storage.BaseImage.Name, doc.Storage.PoolName, doc.Storage.BaseImage.Format, doc.Storage.BaseImage.URL)
	s.Volumes = append(s.Volumes, baseVolume)

	for _, role := range []struct {
		singular string
		cfg      config.Role
	}{
		{"master", doc.Nodes.Masters},
		{"worker", doc.Nodes.Workers},
	} {
		for i := 1; i <= role.cfg.Count; i++ {
			diskName := fmt.Sprintf("%s-%s-%d-disk", doc.Cluster.Name, role.singular, i)
			initName := fmt.Sprintf("%s-%s-%d-init.iso", doc.Cluster.Name, role.singular, i)
			domainName := fmt.Sprintf("%s-%s-%d", doc.Cluster.Name, role.singular, i)

			s.Volumes = append(s.Volumes,
				state.NewClonedVolume(diskName, doc.Storage.PoolName, "qcow2", baseVolume.Name, role.cfg.DiskBytes))
			s.Volumes = append(s.Volumes,
				state.NewCloudInitVolume(initName, doc.Storage.PoolName, role.singular, i))

			s.Domains = append(s.Domains, state.Domain{
				Name:       domainName,
				MemoryMiB:  role.cfg.MemoryMiB,
				VCPU:       role.cfg.VCPU,
				Pool:       doc.Storage.PoolName,
				Network:    doc.Network.Name,
				DiskVolume: diskName,
				IPAddress:  fmt.Sprintf("%s%d", role.cfg.IPPrefix, i),
				State:      state.DomainRunning,
			})
		}
	}

	return s
}

func synthesizeNetwork(doc config.Document) state.Network {
	return state.Network{
		Name:      doc.Network.Name,
		Mode:      state.NetworkMode(doc.Network.Mode),
		Domain:    doc.Cluster.Domain,
		Addresses: []string{doc.Network.CIDR},
		DHCP:      doc.Network.DHCP,
		DNS:       doc.Network.DNS,
	}
}

func synthesizePool(doc config.Document) state.Pool {
	return state.Pool{
		Name: doc.Storage.PoolName,
		Type: "dir",
		Path: doc.Storage.PoolPath,
	}
}
