// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/tfrunner/tfrunner/internal/definitions"
	"github.com/tfrunner/tfrunner/internal/providers"
)

// parseHCL decodes a .hcl config. The shape mirrors the YAML layout, with
// nested blocks instead of mappings:
//
//	terraform {
//	  definitions { network { path = "definitions/network" } }
//	  providers   { aws { requirements { version = "5.54.0" } } }
//	}
func parseHCL(path string, raw []byte) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(raw, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %s", path, diags.Error())
	}
	body, ok := f.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("config file %s: unexpected body type", path)
	}

	tf := findBlock(body, "terraform")
	if tf == nil {
		return nil, fmt.Errorf("config file %s has no terraform block", path)
	}

	cfg := &Config{}
	for _, block := range tf.Body.Blocks {
		var err error
		switch block.Type {
		case "definitions":
			err = hclDefinitions(cfg, block.Body)
		case "providers":
			err = hclProviders(cfg, block.Body)
		case "remote_vars":
			cfg.RemoteVars, err = attrStringMap(block.Body)
		case "template_vars":
			cfg.TemplateVars, err = attrMap(block.Body)
		case "terraform_vars":
			cfg.TerraformVars, err = attrMap(block.Body)
		case "worker_options":
			cfg.WorkerOptions, err = attrMap(block.Body)
		default:
			err = fmt.Errorf("unknown terraform block %q", block.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

func hclDefinitions(cfg *Config, body *hclsyntax.Body) error {
	for _, block := range body.Blocks {
		d := &definitions.Definition{}
		attrs, err := attrMap(block.Body)
		if err != nil {
			return fmt.Errorf("definition %s: %w", block.Type, err)
		}
		if err := decodeDefinitionMap(d, attrs); err != nil {
			return fmt.Errorf("definition %s: %w", block.Type, err)
		}
		cfg.Definitions = append(cfg.Definitions, definitions.Named{
			Name:       block.Type,
			Definition: d,
		})
	}
	return nil
}

func decodeDefinitionMap(d *definitions.Definition, attrs map[string]any) error {
	for key, value := range attrs {
		switch key {
		case "path":
			d.Path, _ = value.(string)
		case "always_apply":
			d.AlwaysApply, _ = value.(bool)
		case "always_include":
			d.AlwaysInclude, _ = value.(bool)
		case "terraform_vars":
			d.TerraformVars, _ = value.(map[string]any)
		case "template_vars":
			d.TemplateVars, _ = value.(map[string]any)
		case "remote_vars":
			d.RemoteVars = toStringMap(value)
		default:
			return fmt.Errorf("unknown definition key %q", key)
		}
	}
	return nil
}

func hclProviders(cfg *Config, body *hclsyntax.Body) error {
	for _, block := range body.Blocks {
		pc := providers.Config{}
		for _, nested := range block.Body.Blocks {
			attrs, err := attrMap(nested.Body)
			if err != nil {
				return fmt.Errorf("provider %s: %w", block.Type, err)
			}
			switch nested.Type {
			case "requirements":
				pc.Requirements.Version, _ = attrs["version"].(string)
				pc.Requirements.Source, _ = attrs["source"].(string)
			case "vars":
				pc.Vars = attrs
			case "config_blocks":
				pc.ConfigBlocks = attrs
			default:
				return fmt.Errorf("provider %s: unknown block %q", block.Type, nested.Type)
			}
		}
		cfg.Providers = append(cfg.Providers, providers.Named{
			Name:   block.Type,
			Config: pc,
		})
	}
	return nil
}

func findBlock(body *hclsyntax.Body, name string) *hclsyntax.Block {
	for _, block := range body.Blocks {
		if block.Type == name {
			return block
		}
	}
	return nil
}

// attrMap evaluates a body's attributes into plain Go values. Nested blocks
// become nested maps.
func attrMap(body *hclsyntax.Body) (map[string]any, error) {
	result := map[string]any{}
	for name, attr := range body.Attributes {
		val, diags := attr.Expr.Value(&hcl.EvalContext{})
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %s: %s", name, diags.Error())
		}
		result[name] = ctyToGo(val)
	}
	for _, block := range body.Blocks {
		nested, err := attrMap(block.Body)
		if err != nil {
			return nil, err
		}
		result[block.Type] = nested
	}
	return result, nil
}

func attrStringMap(body *hclsyntax.Body) (map[string]string, error) {
	attrs, err := attrMap(body)
	if err != nil {
		return nil, err
	}
	return toStringMap(attrs), nil
}

func toStringMap(value any) map[string]string {
	attrs, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(attrs))
	for k, v := range attrs {
		result[k] = fmt.Sprintf("%v", v)
	}
	return result
}

// ctyToGo lowers an evaluated cty value to the same shapes the YAML decoder
// produces.
func ctyToGo(val cty.Value) any {
	if val.IsNull() {
		return nil
	}
	t := val.Type()
	switch {
	case t == cty.String:
		return val.AsString()
	case t == cty.Bool:
		return val.True()
	case t == cty.Number:
		f := val.AsBigFloat()
		if i, acc := f.Int64(); acc == big.Exact {
			return int(i)
		}
		fl, _ := f.Float64()
		return fl
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		var items []any
		for it := val.ElementIterator(); it.Next(); {
			_, item := it.Element()
			items = append(items, ctyToGo(item))
		}
		return items
	case t.IsObjectType() || t.IsMapType():
		items := map[string]any{}
		for it := val.ElementIterator(); it.Next(); {
			k, item := it.Element()
			items[k.AsString()] = ctyToGo(item)
		}
		return items
	default:
		return nil
	}
}
