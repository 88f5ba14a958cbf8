// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package copier

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/tfrunner/tfrunner/internal/log"
)

// gitCopier clones a remote repository and copies its tree, minus the .git
// directory, into the working directory.
type gitCopier struct {
	source string
	branch string
}

// Copy implements Copier.
func (c *gitCopier) Copy(ctx context.Context, destination string) error {
	tmp, err := os.MkdirTemp("", "tfrunner-clone-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	args := []string{"clone", "--depth", "1"}
	if c.branch != "" {
		args = append(args, "--branch", c.branch)
	}
	args = append(args, c.source, tmp)

	log.Debugf("git %v", args)
	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone %s failed: %w: %s", c.source, err, out)
	}

	return copyTree(ctx, tmp, destination)
}
