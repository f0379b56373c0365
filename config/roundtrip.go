// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/somatczk/romulus/errs"
)

// Write marshals doc back to YAML at path, for the round-trip invariant
// load(write(load(C))) == load(C) and for operator-facing "show effective
// config" tooling.
func Write(doc Document, path string) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "parse_failed", "failed to marshal configuration", err, nil)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errs.Wrap(errs.KindConfig, "parse_failed", "failed to write configuration", err, nil)
	}
	return nil
}
