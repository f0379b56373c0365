// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"strconv"
	"strings"

	"github.com/imdario/mergo"
)

// applyEnvOverrides deep-merges a fixed set of environment variables over
// doc. Numeric overrides that fail to parse are silently dropped, keeping
// the parsed value — see DESIGN.md's Open Question log.
func applyEnvOverrides(doc Document, environ []string) Document {
	env := map[string]string{}
	for _, kv := range environ {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}

	overrides := Document{}
	applied := false

	if v, ok := env["CLUSTER_NAME"]; ok && v != "" {
		overrides.Cluster.Name = v
		applied = true
	}
	if v, ok := env["NETWORK_CIDR"]; ok && v != "" {
		overrides.Network.CIDR = v
		applied = true
	}
	if v, ok := env["MASTER_COUNT"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			overrides.Nodes.Masters.Count = n
			applied = true
		}
	}
	if v, ok := env["WORKER_MEMORY"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			overrides.Nodes.Workers.MemoryMiB = n
			applied = true
		}
	}

	if !applied {
		return doc
	}

	merged := doc
	if err := mergo.Merge(&merged, overrides, mergo.WithOverride); err != nil {
		return doc
	}
	return merged
}
