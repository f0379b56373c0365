// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudinit

import (
	"net"

	"github.com/somatczk/romulus/errs"
)

// gatewayFromCIDR returns network+1, the same convention xmlgen uses when
// it renders a libvirt network's gateway address, so the address baked
// into network-config always matches the network the domain attaches to.
func gatewayFromCIDR(cidr string) (string, error) {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", errs.Wrap(errs.KindExecution, "precondition_failed", "invalid network CIDR", err,
			map[string]any{"cidr": cidr})
	}
	ip := ipNet.IP.To4()

	gateway := make(net.IP, len(ip))
	copy(gateway, ip)
	gateway[len(gateway)-1]++

	return gateway.String(), nil
}
