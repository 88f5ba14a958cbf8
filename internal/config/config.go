// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/tfrunner/tfrunner/internal/definitions"
	"github.com/tfrunner/tfrunner/internal/log"
	"github.com/tfrunner/tfrunner/internal/providers"
)

// Config is the terraform section of a deployment configuration.
type Config struct {
	Definitions []definitions.Named
	Providers   []providers.Named

	RemoteVars    map[string]string
	TemplateVars  map[string]any
	TerraformVars map[string]any

	// WorkerOptions are file-supplied defaults for CLI options, keyed by
	// flag name. The CLI merges them through each flag's value sources, so
	// command line and environment settings win over these.
	WorkerOptions map[string]any
}

// Load reads, renders and parses the configuration file. The template sees
// the given vars under .var and the process environment under .env; an
// unknown reference is an error rather than a silent empty substitution.
func Load(path string, vars map[string]string) (*Config, error) {
	log.Debugf("loading config file %s", path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	rendered, err := render(path, string(raw), vars)
	if err != nil {
		return nil, err
	}
	log.Tracef("rendered config:\n%s", rendered)

	if strings.HasSuffix(path, ".hcl") {
		return parseHCL(path, []byte(rendered))
	}
	return parseYAML(path, []byte(rendered))
}

func render(path, raw string, vars map[string]string) (string, error) {
	envMap := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		envMap[k] = v
	}
	if vars == nil {
		vars = map[string]string{}
	}
	data := map[string]any{
		"var": vars,
		"env": envMap,
	}

	tpl, err := template.New(filepath.Base(path)).Option("missingkey=error").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse config template %s: %w", path, err)
	}
	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("config file %s contains invalid template substitutions: %w", path, err)
	}
	return buf.String(), nil
}
