// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package definitions

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/tfrunner/tfrunner/internal/backend"
	"github.com/tfrunner/tfrunner/internal/copier"
	"github.com/tfrunner/tfrunner/internal/log"
	"github.com/tfrunner/tfrunner/internal/providers"
)

const (
	tfFile     = "terraform.tf"
	localsFile = "worker-locals.tf"
	tfvarsFile = "worker.auto.tfvars"

	templateSuffix = ".tpl"
)

// PrepOptions carries the deployment-wide state needed to stage definitions.
type PrepOptions struct {
	Backend    backend.Backend
	Providers  *providers.Collection
	WorkingDir string
	RepoPath   string
	// Branch is the deployment-wide branch override for remote sources.
	// A definition's own remote_path_options.branch wins.
	Branch string

	GlobalTerraformVars map[string]any
	GlobalRemoteVars    map[string]string
	GlobalTemplateVars  map[string]any

	// UseBackendRemotes derives remote state references from what the
	// backend actually stores instead of from remote var references.
	UseBackendRemotes bool
}

// Prep stages a definition for terraform init: the source is copied into the
// working directory, templates are rendered, and the generated terraform.tf,
// worker-locals.tf and worker.auto.tfvars files are written.
func Prep(ctx context.Context, d *Definition, opts *PrepOptions) error {
	target := d.TargetPath(opts.WorkingDir)
	log.Debugf("preparing definition %s in %s", d.Name, target)

	copts := copier.Options{RootPath: opts.RepoPath, Branch: opts.Branch}
	if d.RemotePathOptions != nil && d.RemotePathOptions.Branch != "" {
		copts.Branch = d.RemotePathOptions.Branch
	}
	c, err := copier.New(d.Path, copts)
	if err != nil {
		return fmt.Errorf("definition %s source %s: %w", d.Name, d.Path, err)
	}
	if err := c.Copy(ctx, target); err != nil {
		return err
	}

	if err := renderTemplates(target, d.MergedTemplateVars(opts.GlobalTemplateVars)); err != nil {
		return err
	}

	remoteVars := d.MergedRemoteVars(opts.GlobalRemoteVars)
	if err := writeLocals(target, remoteVars); err != nil {
		return err
	}

	remotes, err := resolveRemotes(ctx, d, opts)
	if err != nil {
		return err
	}
	if err := writeTerraformTf(target, d, opts, remotes); err != nil {
		return err
	}

	return writeTfvars(target, d.MergedTerraformVars(opts.GlobalTerraformVars))
}

// resolveRemotes determines which definitions this one reads state from.
func resolveRemotes(ctx context.Context, d *Definition, opts *PrepOptions) ([]string, error) {
	if opts.UseBackendRemotes {
		return opts.Backend.Remotes(ctx)
	}
	return d.Remotes(opts.GlobalRemoteVars), nil
}

// renderTemplates renders every .tpl file under dir in place, writing the
// output without the suffix and removing the template. Missing template vars
// are an error rather than silent empty strings.
func renderTemplates(dir string, vars map[string]any) error {
	var templates []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), templateSuffix) {
			templates = append(templates, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, src := range templates {
		tpl, err := template.New(filepath.Base(src)).Option("missingkey=error").ParseFiles(src)
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", src, err)
		}
		dst, err := os.Create(strings.TrimSuffix(src, templateSuffix))
		if err != nil {
			return err
		}
		if err := tpl.Execute(dst, vars); err != nil {
			dst.Close()
			return fmt.Errorf("failed to render template %s: %w", src, err)
		}
		if err := dst.Close(); err != nil {
			return err
		}
		if err := os.Remove(src); err != nil {
			return err
		}
		log.Tracef("rendered template %s", src)
	}
	return nil
}

// writeLocals maps local names onto remote state references so definition
// code can use locals instead of data source traversals.
func writeLocals(target string, remoteVars map[string]string) error {
	if len(remoteVars) == 0 {
		return nil
	}
	f := hclwrite.NewEmptyFile()
	locals := f.Body().AppendNewBlock("locals", nil)
	for _, k := range sortedKeys(remoteVars) {
		ref := "data.terraform_remote_state." + remoteVars[k]
		locals.Body().SetAttributeRaw(k, hclwrite.TokensForIdentifier(ref))
	}
	return os.WriteFile(filepath.Join(target, localsFile), f.Bytes(), 0o644)
}

// writeTerraformTf emits the generated terraform.tf with provider blocks,
// version requirements, the backend block and remote state data sources.
func writeTerraformTf(target string, d *Definition, opts *PrepOptions, remotes []string) error {
	var buf strings.Builder
	buf.WriteString(opts.Providers.ProviderHcl(nil))
	buf.WriteString("\n")
	buf.WriteString(opts.Providers.RequiredHcl(nil))
	buf.WriteString("\n")
	buf.WriteString(opts.Backend.Hcl(d.Name))
	if data := opts.Backend.DataHcl(remotes); data != "" {
		buf.WriteString("\n")
		buf.WriteString(data)
	}
	return os.WriteFile(filepath.Join(target, tfFile), []byte(buf.String()), 0o644)
}

// writeTfvars emits the merged terraform vars as an auto-loaded tfvars file.
func writeTfvars(target string, vars map[string]any) error {
	var buf strings.Builder
	for _, k := range sortedKeys(vars) {
		rendered, err := renderVar(vars[k])
		if err != nil {
			return fmt.Errorf("terraform var %s: %w", k, err)
		}
		fmt.Fprintf(&buf, "%s = %s\n", k, rendered)
	}
	return os.WriteFile(filepath.Join(target, tfvarsFile), []byte(buf.String()), 0o644)
}

// renderVar converts a decoded YAML value to tfvars syntax. Booleans stay
// bare, collections are emitted as JSON which terraform accepts, and
// anything else is written as a quoted string.
func renderVar(value any) (string, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case []any, map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return fmt.Sprintf("%q", fmt.Sprintf("%v", v)), nil
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
