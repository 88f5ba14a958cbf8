// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package tfexec drives the terraform binary. Commands run through an
// injectable Execer so orchestration logic is testable without terraform
// installed.
package tfexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/tfrunner/tfrunner/internal/log"
	"github.com/tfrunner/tfrunner/internal/types"
)

// Execer runs a command and reports its exit code and output. A non-zero
// exit is not an error at this layer, callers interpret the code.
type Execer interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) (int, []byte, []byte, error)
}

// execRunner is the real Execer backed by os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) (int, []byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return -1, stdout.Bytes(), stderr.Bytes(), err
		}
	}
	return cmd.ProcessState.ExitCode(), stdout.Bytes(), stderr.Bytes(), nil
}

// Error reports a terraform invocation that failed.
type Error struct {
	Action   types.Action
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("terraform %s failed with exit code %d", e.Action, e.ExitCode)
}

// PlanChangeError reports a plan that completed and found changes to apply.
type PlanChangeError struct {
	Definition string
}

func (e *PlanChangeError) Error() string {
	return fmt.Sprintf("plan for %s has changes", e.Definition)
}

// Terraform invokes one terraform binary with a fixed base environment.
type Terraform struct {
	bin    string
	env    map[string]string
	execer Execer
}

// Option adjusts a Terraform runner.
type Option func(*Terraform)

// WithEnv sets extra environment variables for every invocation.
func WithEnv(env map[string]string) Option {
	return func(t *Terraform) { t.env = env }
}

// WithExecer substitutes the process runner, used by tests.
func WithExecer(e Execer) Option {
	return func(t *Terraform) { t.execer = e }
}

// New returns a runner for the terraform binary at bin.
func New(bin string, opts ...Option) *Terraform {
	t := &Terraform{bin: bin, execer: execRunner{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bin returns the path of the terraform binary.
func (t *Terraform) Bin() string { return t.bin }

var versionRe = regexp.MustCompile(`v?(\d+)\.(\d+)\.\d+`)

// Version reports the major and minor version of the terraform binary.
func (t *Terraform) Version(ctx context.Context) (int, int, error) {
	code, stdout, stderr, err := t.execer.Run(ctx, "", t.flatEnv(), t.bin, "version")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to run %s version: %w", t.bin, err)
	}
	if code != 0 {
		return 0, 0, fmt.Errorf("%s version exited %d: %s", t.bin, code, stderr)
	}
	first, _, _ := strings.Cut(string(stdout), "\n")
	m := versionRe.FindStringSubmatch(first)
	if m == nil {
		return 0, 0, fmt.Errorf("cannot parse terraform version from %q", first)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	log.Debugf("terraform version %s.%s", m[1], m[2])
	return major, minor, nil
}

// RunOptions adjusts a single terraform invocation.
type RunOptions struct {
	// Definition names the unit being run, for error reporting.
	Definition string
	// DestroyPlan plans for destruction instead of creation.
	DestroyPlan bool
	// PlanFile saves the plan to, or applies the plan from, this path.
	PlanFile string
	// ShowOutput streams terraform's output through the logger.
	ShowOutput bool
}

// Run executes a terraform action in dir. Plan exit codes get dedicated
// handling: 0 means no changes, 2 raises *PlanChangeError so callers can
// gate the apply, anything else is a *Error.
func (t *Terraform) Run(ctx context.Context, dir string, action types.Action, opts RunOptions) error {
	args := t.args(action, opts)
	log.Infof("cmd: %s %s", t.bin, strings.Join(args, " "))

	code, stdout, stderr, err := t.execer.Run(ctx, dir, t.flatEnv(), t.bin, args...)
	if err != nil {
		return fmt.Errorf("failed to run terraform %s: %w", action, err)
	}
	if opts.ShowOutput {
		for _, line := range splitLines(stdout) {
			log.Infof("stdout: %s", line)
		}
		for _, line := range splitLines(stderr) {
			log.Infof("stderr: %s", line)
		}
	}

	if action == types.ActionPlan {
		switch code {
		case 0:
			return nil
		case 2:
			return &PlanChangeError{Definition: opts.Definition}
		default:
			return &Error{Action: action, ExitCode: code, Stderr: string(stderr)}
		}
	}
	if code != 0 {
		return &Error{Action: action, ExitCode: code, Stderr: string(stderr)}
	}
	return nil
}

// args assembles the per-action argument list.
func (t *Terraform) args(action types.Action, opts RunOptions) []string {
	base := []string{action.String(), "-input=false", "-no-color"}
	switch action {
	case types.ActionPlan:
		base = append(base, "-detailed-exitcode")
		if opts.DestroyPlan {
			base = append(base, "-destroy")
		}
		if opts.PlanFile != "" {
			base = append(base, "-out="+opts.PlanFile)
		}
	case types.ActionApply:
		base = append(base, "-auto-approve")
		if opts.PlanFile != "" {
			base = append(base, opts.PlanFile)
		}
	case types.ActionDestroy:
		base = append(base, "-auto-approve")
	}
	return base
}

func (t *Terraform) flatEnv() []string {
	flat := os.Environ()
	for k, v := range t.env {
		flat = append(flat, k+"="+v)
	}
	return flat
}

func splitLines(raw []byte) []string {
	trimmed := strings.TrimRight(string(raw), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
