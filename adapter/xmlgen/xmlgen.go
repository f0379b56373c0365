// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package xmlgen renders the libvirt domain/network/pool XML documents
// VirshAdapter hands to virsh define/net-define/pool-define. It builds
// everything through libvirtxml's typed structs rather than concatenating
// strings, so names and paths are escaped the same way libvirt's own
// virsh -x would escape them.
package xmlgen

import (
	"fmt"
	"net"

	"libvirt.org/go/libvirtxml"

	"github.com/somatczk/romulus/state"
)

// Domain renders the guest XML for d: kvm/x86_64/pc-q35, host-passthrough
// CPU, one virtio disk, one IDE cdrom for the cloud-init ISO, one virtio
// NIC on network, a serial console, and SPICE graphics.
func Domain(d state.Domain, diskPath, cloudInitISOPath string) (string, error) {
	dom := libvirtxml.Domain{
		Type: "kvm",
		Name: d.Name,
		Memory: &libvirtxml.DomainMemory{
			Value: d.MemoryMiB,
			Unit:  "MiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Value: int(d.VCPU),
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch:    "x86_64",
				Machine: "pc-q35",
				Type:    "hvm",
			},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-passthrough",
		},
		Devices: &libvirtxml.DomainDeviceList{
			Disks: []libvirtxml.DomainDisk{
				{
					Device: "disk",
					Driver: &libvirtxml.DomainDiskDriver{Name: "qemu", Type: "qcow2"},
					Source: &libvirtxml.DomainDiskSource{
						File: &libvirtxml.DomainDiskSourceFile{File: diskPath},
					},
					Target: &libvirtxml.DomainDiskTarget{Dev: "vda", Bus: "virtio"},
				},
				{
					Device: "cdrom",
					Driver: &libvirtxml.DomainDiskDriver{Name: "qemu", Type: "raw"},
					Source: &libvirtxml.DomainDiskSource{
						File: &libvirtxml.DomainDiskSourceFile{File: cloudInitISOPath},
					},
					Target:   &libvirtxml.DomainDiskTarget{Dev: "hda", Bus: "ide"},
					ReadOnly: &libvirtxml.DomainDiskReadOnly{},
				},
			},
			Interfaces: []libvirtxml.DomainInterface{
				{
					Source: &libvirtxml.DomainInterfaceSource{
						Network: &libvirtxml.DomainInterfaceSourceNetwork{Network: d.Network},
					},
					Model: &libvirtxml.DomainInterfaceModel{Type: "virtio"},
				},
			},
			Serials: []libvirtxml.DomainSerial{
				{Target: &libvirtxml.DomainSerialTarget{Type: "isa-serial", Port: uintPtr(0)}},
			},
			Graphics: []libvirtxml.DomainGraphic{
				{Spice: &libvirtxml.DomainGraphicSpice{AutoPort: "yes"}},
			},
		},
	}

	return dom.Marshal()
}

func uintPtr(v uint) *uint { return &v }

// Network renders the XML for n. Mode maps straight to <forward mode=...>.
// The gateway is always network+1 of the network's first CIDR; when DHCP
// is requested, a lease range of .100-.254 within that CIDR is added.
func Network(n state.Network) (string, error) {
	netXML := libvirtxml.Network{
		Name: n.Name,
		Forward: &libvirtxml.NetworkForward{
			Mode: string(n.Mode),
		},
	}

	if n.Domain != "" {
		netXML.Domain = &libvirtxml.NetworkDomain{Name: n.Domain}
	}

	if len(n.Addresses) > 0 {
		ip, err := networkIP(n.Addresses[0], n.DHCP)
		if err != nil {
			return "", err
		}
		netXML.IPs = []libvirtxml.NetworkIP{ip}
	}

	if n.DNS {
		netXML.DNS = &libvirtxml.NetworkDNS{Enable: "yes"}
	}

	return netXML.Marshal()
}

func networkIP(cidr string, dhcp bool) (libvirtxml.NetworkIP, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return libvirtxml.NetworkIP{}, fmt.Errorf("xmlgen: invalid network address %q: %w", cidr, err)
	}
	ip := ipNet.IP.To4()

	gateway := make(net.IP, len(ip))
	copy(gateway, ip)
	gateway[len(gateway)-1]++

	result := libvirtxml.NetworkIP{
		Address: gateway.String(),
		Netmask: maskString(ipNet.Mask),
	}

	if dhcp {
		start := make(net.IP, len(ip))
		copy(start, ip)
		start[len(start)-1] = 100

		end := make(net.IP, len(ip))
		copy(end, ip)
		end[len(end)-1] = 254

		result.DHCP = &libvirtxml.NetworkDHCP{
			Ranges: []libvirtxml.NetworkDHCPRange{
				{Start: start.String(), End: end.String()},
			},
		}
	}

	return result, nil
}

func maskString(mask net.IPMask) string {
	return net.IP(mask).String()
}

// Pool renders the XML for a dir-type storage pool rooted at path.
func Pool(p state.Pool, path string) (string, error) {
	pool := libvirtxml.StoragePool{
		Type: "dir",
		Name: p.Name,
		Target: &libvirtxml.StoragePoolTarget{
			Path: path,
		},
	}
	return pool.Marshal()
}
