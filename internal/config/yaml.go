// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tfrunner/tfrunner/internal/definitions"
	"github.com/tfrunner/tfrunner/internal/providers"
)

// parseYAML decodes the rendered config through yaml.Node so definition and
// provider order survives the round trip; plain map decoding would lose it.
func parseYAML(path string, raw []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, fmt.Errorf("config file %s is empty", path)
		}
		root = root.Content[0]
	}

	tf := mappingValue(root, "terraform")
	if tf == nil {
		return nil, fmt.Errorf("config file %s has no terraform section", path)
	}

	cfg := &Config{}
	for key, value := range mappingPairs(tf) {
		var err error
		switch key {
		case "definitions":
			err = decodeDefinitions(cfg, value)
		case "providers":
			err = decodeProviders(cfg, value)
		case "remote_vars":
			err = value.Decode(&cfg.RemoteVars)
		case "template_vars":
			err = value.Decode(&cfg.TemplateVars)
		case "terraform_vars":
			err = value.Decode(&cfg.TerraformVars)
		case "worker_options":
			err = value.Decode(&cfg.WorkerOptions)
		default:
			err = fmt.Errorf("unknown terraform section key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

func decodeDefinitions(cfg *Config, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("definitions must be a mapping")
	}
	for name, value := range mappingPairs(node) {
		var d definitions.Definition
		if err := value.Decode(&d); err != nil {
			return fmt.Errorf("definition %s: %w", name, err)
		}
		cfg.Definitions = append(cfg.Definitions, definitions.Named{
			Name:       name,
			Definition: &d,
		})
	}
	return nil
}

func decodeProviders(cfg *Config, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("providers must be a mapping")
	}
	for name, value := range mappingPairs(node) {
		var pc providers.Config
		if err := value.Decode(&pc); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		cfg.Providers = append(cfg.Providers, providers.Named{
			Name:   name,
			Config: pc,
		})
	}
	return nil
}

// mappingValue returns the value node for key in a mapping, or nil.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// mappingPairs iterates a mapping node's key/value pairs in document order.
func mappingPairs(node *yaml.Node) func(yield func(string, *yaml.Node) bool) {
	return func(yield func(string, *yaml.Node) bool) {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if !yield(node.Content[i].Value, node.Content[i+1]) {
				return
			}
		}
	}
}
