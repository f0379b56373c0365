// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/somatczk/romulus/errs"
)

// searchPaths is tried in order when no explicit path is supplied; the
// first file that exists wins.
func searchPaths() []string {
	home, _ := os.UserHomeDir()
	paths := []string{
		"romulus.yaml", "romulus.yml",
		filepath.Join("config", "romulus.yaml"), filepath.Join("config", "romulus.yml"),
	}
	if home != "" {
		paths = append(paths,
			filepath.Join(home, ".romulus", "config.yaml"),
			filepath.Join(home, ".romulus", "config.yml"))
	}
	paths = append(paths,
		filepath.Join("/etc", "romulus", "config.yaml"),
		filepath.Join("/etc", "romulus", "config.yml"))
	return paths
}

// Load locates a config file (path, if non-empty, otherwise the first hit
// in searchPaths), parses it, applies environment overrides, expands
// filesystem paths, and validates the result.
func Load(path string) (Document, error) {
	resolved := path
	if resolved == "" {
		resolved = findFirstExisting(searchPaths())
	}
	if resolved == "" {
		return Document{}, errs.ConfigFileNotFound("<no candidate path exists>")
	}
	if _, err := os.Stat(resolved); err != nil {
		return Document{}, errs.ConfigFileNotFound(resolved)
	}

	v := viper.New()
	v.SetConfigFile(resolved)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Document{}, errs.ConfigParseFailed(resolved, err)
	}

	var doc Document
	if err := v.Unmarshal(&doc, viperDecoderOptions); err != nil {
		return Document{}, errs.ConfigParseFailed(resolved, err)
	}

	doc = applyEnvOverrides(doc, os.Environ())
	doc = expandPaths(doc)

	if err := Validate(doc); err != nil {
		return Document{}, err
	}

	return doc, nil
}

func viperDecoderOptions(dc *mapstructure.DecoderConfig) {
	dc.TagName = "mapstructure"
	dc.ErrorUnused = false
}

func findFirstExisting(candidates []string) string {
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
