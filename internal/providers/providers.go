// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

const (
	// DefaultHostname is assumed when a provider source omits a registry host.
	DefaultHostname = "registry.terraform.io"
	// DefaultNamespace is assumed when a provider source omits a namespace.
	DefaultNamespace = "hashicorp"
)

// GID is a provider global identifier, hostname/namespace/type.
type GID struct {
	Hostname  string
	Namespace string
	Type      string
}

func (g GID) String() string {
	return g.Hostname + "/" + g.Namespace + "/" + g.Type
}

// Source returns the short registry source, namespace/type, dropping the
// hostname when it is the public registry.
func (g GID) Source() string {
	if g.Hostname != DefaultHostname {
		return g.String()
	}
	return g.Namespace + "/" + g.Type
}

// ParseGID resolves a source string like "hashicorp/aws" or
// "registry.example.com/acme/thing" into a GID, filling defaults for omitted
// parts. An empty source resolves to the public hashicorp provider of the
// given name.
func ParseGID(source, name string) (GID, error) {
	gid := GID{Hostname: DefaultHostname, Namespace: DefaultNamespace}
	if source == "" {
		gid.Type = name
		return gid, nil
	}
	parts := strings.Split(source, "/")
	switch len(parts) {
	case 1:
		gid.Type = parts[0]
	case 2:
		gid.Namespace = parts[0]
		gid.Type = parts[1]
	case 3:
		gid.Hostname = parts[0]
		gid.Namespace = parts[1]
		gid.Type = parts[2]
	default:
		return GID{}, fmt.Errorf("invalid provider source %q for %s", source, name)
	}
	return gid, nil
}

// Requirements pins a provider version and registry source.
type Requirements struct {
	Version string `yaml:"version"`
	Source  string `yaml:"source,omitempty"`
}

// Alias is an additional configuration of the same provider, such as an AWS
// region alias. Alias vars and config blocks override the provider's own.
type Alias struct {
	Vars         map[string]any `yaml:"vars,omitempty"`
	ConfigBlocks map[string]any `yaml:"config_blocks,omitempty"`
}

// Config is the user-supplied body of a provider entry.
type Config struct {
	Requirements Requirements     `yaml:"requirements"`
	Vars         map[string]any   `yaml:"vars,omitempty"`
	ConfigBlocks map[string]any   `yaml:"config_blocks,omitempty"`
	Aliases      map[string]Alias `yaml:"aliases,omitempty"`
}

// Provider is a resolved provider entry.
type Provider struct {
	Name   string
	GID    GID
	Config Config
}

// New resolves a provider config into a Provider, deriving the GID from the
// requirements source and merging each alias over the top level vars and
// config blocks.
func New(name string, config Config) (*Provider, error) {
	gid, err := ParseGID(config.Requirements.Source, name)
	if err != nil {
		return nil, err
	}
	for alias, body := range config.Aliases {
		body.Vars = mergeMaps(config.Vars, body.Vars)
		body.ConfigBlocks = mergeMaps(config.ConfigBlocks, body.ConfigBlocks)
		config.Aliases[alias] = body
	}
	return &Provider{Name: name, GID: gid, Config: config}, nil
}

func (p *Provider) String() string {
	return p.Name
}

// Required renders the provider's entry for a required_providers block.
func (p *Provider) Required(body *hclwrite.Body) {
	body.SetAttributeValue(p.Name, cty.ObjectVal(map[string]cty.Value{
		"source":  cty.StringVal(p.GID.Source()),
		"version": cty.StringVal(p.Config.Requirements.Version),
	}))
}

// Hcl renders the provider block, one per alias plus the unaliased base.
func (p *Provider) Hcl(f *hclwrite.File) {
	p.block(f, "", p.Config.Vars, p.Config.ConfigBlocks)
	for _, alias := range sortedKeys(p.Config.Aliases) {
		f.Body().AppendNewline()
		body := p.Config.Aliases[alias]
		p.block(f, alias, body.Vars, body.ConfigBlocks)
	}
}

func (p *Provider) block(f *hclwrite.File, alias string, vars, blocks map[string]any) {
	pb := f.Body().AppendNewBlock("provider", []string{p.Name})
	if alias != "" {
		pb.Body().SetAttributeValue("alias", cty.StringVal(alias))
	}
	for _, k := range sortedKeys(vars) {
		setValue(pb.Body(), k, vars[k])
	}
	for _, k := range sortedKeys(blocks) {
		nested, ok := blocks[k].(map[string]any)
		if !ok {
			setValue(pb.Body(), k, blocks[k])
			continue
		}
		nb := pb.Body().AppendNewBlock(k, nil)
		for _, nk := range sortedKeys(nested) {
			setValue(nb.Body(), nk, nested[nk])
		}
	}
}

// setValue writes a provider var. String values holding a double quote are
// treated as raw expressions, which is how file() references reach the
// rendered provider block.
func setValue(body *hclwrite.Body, name string, value any) {
	if s, ok := value.(string); ok && strings.Contains(s, `"`) {
		body.SetAttributeRaw(name, hclwrite.TokensForIdentifier(s))
		return
	}
	body.SetAttributeValue(name, ctyValue(value))
}

// ctyValue converts a decoded YAML value to cty for hclwrite.
func ctyValue(value any) cty.Value {
	switch v := value.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType)
	case bool:
		return cty.BoolVal(v)
	case string:
		return cty.StringVal(v)
	case int:
		return cty.NumberIntVal(int64(v))
	case int64:
		return cty.NumberIntVal(v)
	case float64:
		return cty.NumberFloatVal(v)
	case []any:
		if len(v) == 0 {
			return cty.EmptyTupleVal
		}
		vals := make([]cty.Value, len(v))
		for i, item := range v {
			vals[i] = ctyValue(item)
		}
		return cty.TupleVal(vals)
	case map[string]any:
		if len(v) == 0 {
			return cty.EmptyObjectVal
		}
		vals := make(map[string]cty.Value, len(v))
		for k, item := range v {
			vals[k] = ctyValue(item)
		}
		return cty.ObjectVal(vals)
	default:
		return cty.StringVal(fmt.Sprintf("%v", v))
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

func mergeMaps(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
