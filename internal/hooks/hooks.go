// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package hooks runs user-supplied scripts around terraform actions. A
// definition opts in by shipping an executable hooks/<stage>_<action>
// script, which receives the terraform vars and remote state values through
// its environment.
package hooks

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tfrunner/tfrunner/internal/log"
	"github.com/tfrunner/tfrunner/internal/types"
)

const hooksDir = "hooks"

// localRe matches the generated worker-locals.tf entries, capturing the
// local name, the remote definition and the output item.
var localRe = regexp.MustCompile(`\s*(?P<item>\w+)\s*=.+data\.terraform_remote_state\.(?P<state>\w+)\.outputs\.(?P<state_item>\w+)\s*`)

// HookError reports a hook that could not be run or that failed.
type HookError struct {
	Message string
	Err     error
}

func (e *HookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HookError) Unwrap() error { return e.Err }

// Options adjusts hook execution.
type Options struct {
	// Env is the base environment, typically authenticator exports.
	Env map[string]string
	// TerraformPath is exported as TF_PATH and used to resolve remote vars.
	TerraformPath string
	// B64Encode encodes variable values so shells survive arbitrary content.
	B64Encode bool
	// ExtraVars are exported as TF_EXTRA_* variables.
	ExtraVars map[string]string
	// Debug logs the hook's output after execution.
	Debug bool
}

// Check reports whether a hook exists for the stage and action in the
// definition directory. A hook that exists but is not executable is a
// *HookError, silently skipping it would hide a real mistake.
func Check(dir string, stage types.Stage, action types.Action) (bool, error) {
	hookDir := filepath.Join(dir, hooksDir)
	entries, err := os.ReadDir(hookDir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	want := fmt.Sprintf("%s_%s", stage, action)
	for _, entry := range entries {
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) != want {
			continue
		}
		path := filepath.Join(hookDir, name)
		info, err := entry.Info()
		if err != nil {
			return false, err
		}
		if info.Mode()&0o111 == 0 {
			return false, &HookError{Message: fmt.Sprintf("%s exists, but is not executable", path)}
		}
		return true, nil
	}
	return false, nil
}

// Exec runs the hook for the stage and action with a fully populated
// environment: the base env, TF_PATH, TF_VAR_* from the generated tfvars,
// TF_REMOTE_* resolved from remote state outputs and TF_EXTRA_* extras.
func Exec(ctx context.Context, dir string, stage types.Stage, action types.Action, opts Options) error {
	script, err := findScript(dir, stage, action)
	if err != nil {
		return err
	}

	env := map[string]string{}
	for k, v := range opts.Env {
		env[k] = v
	}
	env["TF_PATH"] = opts.TerraformPath

	if err := populateTerraformVars(env, dir, opts.B64Encode); err != nil {
		return err
	}
	if err := populateRemoteVars(ctx, env, dir, opts); err != nil {
		return err
	}
	for k, v := range opts.ExtraVars {
		setVar(env, types.HookVarExtra, k, v, opts.B64Encode)
	}

	return run(ctx, script, dir, stage, action, env, opts.Debug)
}

func findScript(dir string, stage types.Stage, action types.Action) (string, error) {
	hookDir := filepath.Join(dir, hooksDir)
	entries, err := os.ReadDir(hookDir)
	if err != nil {
		return "", &HookError{Message: fmt.Sprintf("hook script missing from %s", hookDir), Err: err}
	}
	want := fmt.Sprintf("%s_%s", stage, action)
	for _, entry := range entries {
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == want {
			return filepath.Join(hookDir, name), nil
		}
	}
	return "", &HookError{Message: fmt.Sprintf("hook script missing from %s", hookDir)}
}

// populateTerraformVars exports each line of the generated tfvars file as a
// TF_VAR_* variable.
func populateTerraformVars(env map[string]string, dir string, b64 bool) error {
	raw, err := os.ReadFile(filepath.Join(dir, "worker.auto.tfvars"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(raw), "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		setVar(env, types.HookVarVar, key, value, b64)
	}
	return nil
}

// populateRemoteVars resolves each worker-locals.tf reference through
// terraform output in the remote definition's directory and exports it as a
// TF_REMOTE_* variable.
func populateRemoteVars(ctx context.Context, env map[string]string, dir string, opts Options) error {
	raw, err := os.ReadFile(filepath.Join(dir, "worker-locals.tf"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(raw), "\n") {
		m := localRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item, state, stateItem := m[1], m[2], m[3]
		value, err := stateOutput(ctx, env, dir, opts.TerraformPath, state, stateItem)
		if err != nil {
			return err
		}
		setVar(env, types.HookVarRemote, item, value, opts.B64Encode)
	}
	return nil
}

// stateOutput reads one output from a sibling definition's state. The hook
// is responsible for coping when a limited run left the sibling unstaged.
func stateOutput(ctx context.Context, env map[string]string, dir, terraformBin, state, item string) (string, error) {
	stateDir := filepath.Join(filepath.Dir(dir), state)
	cmd := exec.CommandContext(ctx, terraformBin, "output", "-json", "-no-color", item)
	cmd.Dir = stateDir
	cmd.Env = flatEnv(env)
	out, err := cmd.Output()
	if err != nil {
		return "", &HookError{
			Message: fmt.Sprintf("failed to read remote state item %s.%s", state, item),
			Err:     err,
		}
	}
	result := gjson.Get(string(out), "@ugly")
	if !result.Exists() {
		return "", &HookError{
			Message: fmt.Sprintf("remote state item %s.%s is not valid JSON", state, item),
		}
	}
	return result.Raw, nil
}

// setVar normalizes and exports a typed hook variable. Keys become upper
// case with separators folded to underscores, values lose quoting and
// newlines so they are safe to hand to a shell.
func setVar(env map[string]string, kind types.HookVarType, key, value string, b64 bool) {
	key = strings.NewReplacer(" ", "", `"`, "", "-", "_", ".", "_").Replace(key)
	value = strings.NewReplacer(" ", "", `"`, "", "\n", "").Replace(value)
	if b64 {
		value = base64.StdEncoding.EncodeToString([]byte(value))
	}
	env[fmt.Sprintf("%s_%s", kind, strings.ToUpper(key))] = value
}

func run(ctx context.Context, script, dir string, stage types.Stage, action types.Action, env map[string]string, debug bool) error {
	cmd := exec.CommandContext(ctx, script, stage.String(), action.String())
	cmd.Dir = filepath.Join(dir, hooksDir)
	cmd.Env = flatEnv(env)
	out, err := cmd.CombinedOutput()
	if debug {
		for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
			log.Debugf("hook %s: %s", filepath.Base(script), line)
		}
	}
	if err != nil {
		return &HookError{
			Message: fmt.Sprintf("hook script %s failed", script),
			Err:     err,
		}
	}
	return nil
}

func flatEnv(env map[string]string) []string {
	flat := os.Environ()
	for k, v := range env {
		flat = append(flat, k+"="+v)
	}
	return flat
}
