// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"github.com/hashicorp/go-multierror"

	"github.com/somatczk/romulus/errs"
)

// Validate checks doc against romulus's required-keys schema. Missing
// required keys surface as ConfigError/validation_failed.
func Validate(doc Document) error {
	var merr *multierror.Error

	if doc.Cluster.Name == "" {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("cluster.name is required", nil))
	}
	if doc.Network.Name == "" {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("network.name is required", nil))
	}
	if doc.Network.CIDR == "" {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("network.cidr is required", nil))
	}
	if doc.Storage.PoolName == "" {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("storage.pool_name is required", nil))
	}
	if doc.Storage.PoolPath == "" {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("storage.pool_path is required", nil))
	}
	if doc.Storage.BaseImage.URL == "" {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("storage.base_image.url is required", nil))
	}
	if doc.SSH.PublicKeyPath == "" {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("ssh.public_key_path is required", nil))
	}
	if doc.Nodes.Masters.Count < 0 {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("nodes.masters.count must not be negative", nil))
	}
	if doc.Nodes.Workers.Count < 0 {
		merr = multierror.Append(merr, errs.ConfigValidationFailed("nodes.workers.count must not be negative", nil))
	}

	return merr.ErrorOrNil()
}
