// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// expandPaths resolves user-home (~) and relative paths in the fields
// that name filesystem locations to absolute paths. Empty strings are
// left alone — nil paths stay nil.
func expandPaths(doc Document) Document {
	doc.SSH.PublicKeyPath = expandPath(doc.SSH.PublicKeyPath)
	doc.SSH.PrivateKeyPath = expandPath(doc.SSH.PrivateKeyPath)
	doc.Storage.PoolPath = expandPath(doc.Storage.PoolPath)
	return doc
}

func expandPath(p string) string {
	if p == "" {
		return p
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
