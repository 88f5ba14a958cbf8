// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package definitions models the units of terraform work in a deployment.
// Each definition points at a directory of terraform code and carries the
// variables used to render its generated files.
package definitions

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tfrunner/tfrunner/internal/log"
)

// RemotePathOptions adjusts how a remote definition source is fetched.
type RemotePathOptions struct {
	Branch string `yaml:"branch,omitempty"`
}

// Definition is a single unit of terraform code within a deployment.
type Definition struct {
	Name              string             `yaml:"-"`
	Path              string             `yaml:"path"`
	AlwaysApply       bool               `yaml:"always_apply,omitempty"`
	AlwaysInclude     bool               `yaml:"always_include,omitempty"`
	RemotePathOptions *RemotePathOptions `yaml:"remote_path_options,omitempty"`

	TerraformVars map[string]any    `yaml:"terraform_vars,omitempty"`
	RemoteVars    map[string]string `yaml:"remote_vars,omitempty"`
	TemplateVars  map[string]any    `yaml:"template_vars,omitempty"`

	IgnoredGlobalTerraformVars []string `yaml:"ignored_global_terraform_vars,omitempty"`
	IgnoredGlobalRemoteVars    []string `yaml:"ignored_global_remote_vars,omitempty"`
	IgnoredGlobalTemplateVars  []string `yaml:"ignored_global_template_vars,omitempty"`
	UseGlobalTerraformVars     []string `yaml:"use_global_terraform_vars,omitempty"`
	UseGlobalRemoteVars        []string `yaml:"use_global_remote_vars,omitempty"`
	UseGlobalTemplateVars      []string `yaml:"use_global_template_vars,omitempty"`

	// NeedsApply is set after planning when the plan reported changes.
	NeedsApply bool `yaml:"-"`
	// PlanFile is the saved plan path once a plan has been written.
	PlanFile string `yaml:"-"`
}

// TargetPath returns the working directory slot the definition is staged in.
func (d *Definition) TargetPath(workingDir string) string {
	return filepath.Join(workingDir, "definitions", d.Name)
}

// MergedTerraformVars merges global terraform vars under the definition's
// own, honoring the ignore and use lists.
func (d *Definition) MergedTerraformVars(globals map[string]any) map[string]any {
	return merge(d.Name, d.TerraformVars, globals,
		d.IgnoredGlobalTerraformVars, d.UseGlobalTerraformVars)
}

// MergedRemoteVars merges global remote vars under the definition's own.
func (d *Definition) MergedRemoteVars(globals map[string]string) map[string]string {
	return merge(d.Name, d.RemoteVars, globals,
		d.IgnoredGlobalRemoteVars, d.UseGlobalRemoteVars)
}

// MergedTemplateVars merges global template vars under the definition's own.
func (d *Definition) MergedTemplateVars(globals map[string]any) map[string]any {
	return merge(d.Name, d.TemplateVars, globals,
		d.IgnoredGlobalTemplateVars, d.UseGlobalTemplateVars)
}

// Remotes returns the distinct definition names referenced by the merged
// remote vars, in sorted order. A value like "network.outputs.vpc_id" refers
// to the network definition's state.
func (d *Definition) Remotes(globals map[string]string) []string {
	seen := map[string]bool{}
	var names []string
	for _, ref := range d.MergedRemoteVars(globals) {
		name := strings.SplitN(ref, ".", 2)[0]
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// merge overlays globals under own. Own keys always win, ignored globals are
// skipped, and a non-empty use list restricts which globals are considered.
func merge[V any](name string, own, globals map[string]V, ignored, use []string) map[string]V {
	full := make(map[string]V, len(own)+len(globals))
	for k, v := range own {
		full[k] = v
	}
	for k, v := range globals {
		if _, ok := full[k]; ok {
			continue
		}
		if slices.Contains(ignored, k) {
			log.Tracef("definition %s ignores global var %s", name, k)
			continue
		}
		if len(use) > 0 && !slices.Contains(use, k) {
			continue
		}
		full[k] = v
	}
	return full
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Path)
}
