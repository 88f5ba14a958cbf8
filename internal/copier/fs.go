// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package copier

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// gitInternal names entries never copied into a working directory.
var gitInternal = map[string]bool{
	".git":              true,
	".terraform":        true,
	"terraform.tfstate": true,
}

// fsCopier copies a directory tree already on disk.
type fsCopier struct {
	source string
}

func newFSCopier(source, rootPath string) (*fsCopier, error) {
	candidate := source
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(rootPath, source)
	}
	info, err := os.Stat(candidate)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", candidate)
	}
	return &fsCopier{source: candidate}, nil
}

// Copy implements Copier.
func (c *fsCopier) Copy(ctx context.Context, destination string) error {
	return copyTree(ctx, c.source, destination)
}

// copyTree copies src into dst, skipping terraform and git internals and
// refusing reserved files.
func copyTree(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		name := d.Name()
		if gitInternal[name] || strings.HasPrefix(name, "terraform.tfstate") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && slices.Contains(ReservedFiles, name) {
			return &ReservedFileError{Path: rel}
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
