// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cloudinit

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"

	"github.com/somatczk/romulus/errs"
)

type Entry struct {
	Path   string
	Reader io.Reader
}

// Write packages layout into an ISO-9660 image at isoPath, with both
// Rock Ridge and Joliet extensions enabled and volume identifier label.
func Write(isoPath, label string, layout []Entry) error {
	if err := os.RemoveAll(isoPath); err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to clear existing cloud-init ISO path", err,
			map[string]any{"path": isoPath})
	}

	isoFile, err := os.Create(isoPath)
	if err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to create cloud-init ISO file", err,
			map[string]any{"path": isoPath})
	}
	defer isoFile.Close()

	workdir, err := os.MkdirTemp("", "romulus_iso9660")
	if err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to create ISO-9660 work directory", err, nil)
	}
	defer os.RemoveAll(workdir)

	if runtime.GOOS == "windows" {
		// go-diskfs needs unix-style separators even on Windows.
		workdir = filepath.ToSlash(workdir)
	}

	fsys, err := iso9660.Create(isoFile, 0, 0, 0, workdir)
	if err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to initialize ISO-9660 filesystem", err, nil)
	}

	for _, f := range layout {
		if _, err := writeEntry(fsys, f.Path, f.Reader); err != nil {
			return errs.Wrap(errs.KindExecution, "action_failed", "failed to write cloud-init ISO entry", err,
				map[string]any{"entry": f.Path})
		}
	}

	// Joliet is enabled alongside Rock Ridge so the image is readable by
	// cloud-init implementations that only understand the Joliet extension.
	finalizeOptions := iso9660.FinalizeOptions{
		RockRidge:        true,
		Joliet:           true,
		VolumeIdentifier: label,
	}

	if err := fsys.Finalize(finalizeOptions); err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to finalize cloud-init ISO", err, nil)
	}

	return isoFile.Close()
}

func writeEntry(fsys filesystem.FileSystem, pathStr string, r io.Reader) (int64, error) {
	if dir := path.Dir(pathStr); dir != "" && dir != "/" {
		if err := fsys.Mkdir(dir); err != nil {
			return 0, err
		}
	}
	f, err := fsys.OpenFile(pathStr, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(f, r)
}

func writeISO(isoPath, label, stagingDir string) error {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return errs.Wrap(errs.KindExecution, "action_failed", "failed to read cloud-init staging directory", err,
			map[string]any{"dir": stagingDir})
	}

	layout := make([]Entry, 0, len(entries))
	files := make([]*os.File, 0, len(entries))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, e := range entries {
		f, err := os.Open(filepath.Join(stagingDir, e.Name()))
		if err != nil {
			return errs.Wrap(errs.KindExecution, "action_failed", "failed to open staged cloud-init file", err,
				map[string]any{"file": e.Name()})
		}
		files = append(files, f)
		layout = append(layout, Entry{Path: "/" + e.Name(), Reader: f})
	}

	return Write(isoPath, label, layout)
}
