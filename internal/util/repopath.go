// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tfrunner/tfrunner/internal/copier"
)

// ParseRepoPath parses a repository path spec and returns the resolved path
// and any optional ::branch override. Local paths are made absolute and must
// exist as directories; remote git sources are passed through untouched.
func ParseRepoPath(repoPath string) (string, string, error) {

	if repoPath == "" {
		return "", "", os.ErrInvalid
	}

	var dir, branch string

	// First, split the path to see if there is a ::branch override.
	parts := strings.Split(repoPath, "::")
	if len(parts) > 1 {
		branch = parts[1]
	}

	// Remote git sources are resolved at clone time, not here.
	if copier.IsRemote(parts[0]) {
		return parts[0], branch, nil
	}

	// Now determine if the actual repository path (parts[0]) is absolute or
	// relative. If it is relative, make it absolute.
	if !strings.HasPrefix(parts[0], "/") {
		cwd, err := os.Getwd()
		if err != nil {
			return "", "", err
		}
		dir = filepath.Join(cwd, parts[0])
	} else {
		dir = parts[0]
	}

	// If the repository path is not a directory, return an error.
	if r, err := os.Stat(dir); err != nil {
		return "", "", err
	} else if !r.IsDir() {
		return "", "", os.ErrInvalid
	}

	return dir, branch, nil
}
