// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package copier

import (
	"context"
	"fmt"
	"regexp"

	"github.com/tfrunner/tfrunner/internal/log"
)

// ReservedFiles are written by the runner during prep; definition sources
// must not carry their own copies.
var ReservedFiles = []string{"terraform.tf", "worker-locals.tf", "worker.auto.tfvars"}

// ReservedFileError reports a definition source shipping a file the runner
// owns.
type ReservedFileError struct {
	Path string
}

func (e *ReservedFileError) Error() string {
	return fmt.Sprintf("%s is a reserved file and may not exist in a definition source", e.Path)
}

// Copier materializes a definition source into a working directory.
type Copier interface {
	// Copy places the source contents into destination, which is created if
	// needed. Reserved files in the source abort with *ReservedFileError.
	Copy(ctx context.Context, destination string) error
}

// Options configure source resolution.
type Options struct {
	// RootPath anchors relative filesystem sources, typically the
	// repository path.
	RootPath string
	// Branch selects a git branch or tag; empty uses the remote default.
	Branch string
}

// gitSource matches the remote URI shapes handed to git.
var gitSource = regexp.MustCompile(`^(https?://|git@|git://|ssh://)|\.git$`)

// IsRemote reports whether a source spec is a remote git URI rather than a
// path on disk.
func IsRemote(source string) bool {
	return gitSource.MatchString(source)
}

// New picks a copier for the source spec: remote git URIs clone, anything
// else must be a directory on disk.
func New(source string, opts Options) (Copier, error) {
	if gitSource.MatchString(source) {
		log.Debugf("source %s handled by git copier", source)
		return &gitCopier{source: source, branch: opts.Branch}, nil
	}

	fs, err := newFSCopier(source, opts.RootPath)
	if err != nil {
		return nil, fmt.Errorf("could not handle source %s: %w", source, err)
	}
	log.Debugf("source %s handled by fs copier", source)
	return fs, nil
}
