// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

// Package xdg locates dayplan files under the XDG base directories.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "dayplan"

// ConfigFileName is the file FindConfig looks for inside ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the dayplan config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_HOME_UNKNOWN").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// FindConfig returns the path of the default config file and whether it
// exists. A missing file is not an error.
func FindConfig() (string, bool, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", false, err
	}
	path := filepath.Join(dir, ConfigFileName)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return path, false, nil
	case err != nil:
		return path, false, oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return path, false, oops.Code("XDG_NOT_A_FILE").With("path", path).Errorf("%s is a directory", path)
	}
	return path, true, nil
}
