// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/tfrunner/tfrunner/internal/auth"
)

// Named is one provider entry in configuration order.
type Named struct {
	Name   string
	Config Config
}

// Collection holds the deployment's providers in configuration order.
type Collection struct {
	order  []string
	byName map[string]*Provider
}

// NewCollection resolves the configured providers. Providers whose tag
// matches an authenticator pick up credentials from it, so a google provider
// with a configured credentials file renders a file() reference without the
// user repeating the path in provider vars.
func NewCollection(items []Named, authers *auth.Collection) (*Collection, error) {
	c := &Collection{byName: make(map[string]*Provider, len(items))}
	for _, item := range items {
		if _, ok := c.byName[item.Name]; ok {
			return nil, fmt.Errorf("provider %s is configured twice", item.Name)
		}
		p, err := New(item.Name, item.Config)
		if err != nil {
			return nil, err
		}
		attachCredentials(p, authers)
		c.order = append(c.order, item.Name)
		c.byName[item.Name] = p
	}
	return c, nil
}

// attachCredentials injects a credentials var for providers backed by a
// file based authenticator.
func attachCredentials(p *Provider, authers *auth.Collection) {
	if authers == nil {
		return
	}
	if p.Name != auth.TagGoogle && p.Name != auth.TagGoogleBeta {
		return
	}
	a, err := authers.GetByTag(p.Name)
	if err != nil {
		return
	}
	g, ok := a.(*auth.Google)
	if !ok || g.CredsPath() == "" {
		return
	}
	if p.Config.Vars == nil {
		p.Config.Vars = map[string]any{}
	}
	if _, ok := p.Config.Vars["credentials"]; !ok {
		p.Config.Vars["credentials"] = fmt.Sprintf("file(%q)", g.CredsPath())
	}
}

// Len reports the number of providers.
func (c *Collection) Len() int { return len(c.order) }

// Names returns the provider names in configuration order.
func (c *Collection) Names() []string {
	return append([]string(nil), c.order...)
}

// Get returns a provider by name.
func (c *Collection) Get(name string) (*Provider, bool) {
	p, ok := c.byName[name]
	return p, ok
}

func (c *Collection) String() string {
	parts := make([]string, 0, len(c.order))
	for _, name := range c.order {
		parts = append(parts, fmt.Sprintf("%s: %s", name, c.byName[name].GID))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// RequiredHcl renders the terraform block with required_providers entries
// for the given names, or all providers when includes is nil.
func (c *Collection) RequiredHcl(includes []string) string {
	f := hclwrite.NewEmptyFile()
	tf := f.Body().AppendNewBlock("terraform", nil)
	rp := tf.Body().AppendNewBlock("required_providers", nil)
	for _, name := range c.included(includes) {
		c.byName[name].Required(rp.Body())
	}
	return string(f.Bytes())
}

// ProviderHcl renders provider blocks for the given names, or all providers
// when includes is nil.
func (c *Collection) ProviderHcl(includes []string) string {
	f := hclwrite.NewEmptyFile()
	names := c.included(includes)
	for i, name := range names {
		c.byName[name].Hcl(f)
		if i < len(names)-1 {
			f.Body().AppendNewline()
		}
	}
	return string(f.Bytes())
}

func (c *Collection) included(includes []string) []string {
	if includes == nil {
		return c.order
	}
	wanted := make(map[string]bool, len(includes))
	for _, name := range includes {
		wanted[name] = true
	}
	var names []string
	for _, name := range c.order {
		if wanted[name] {
			names = append(names, name)
		}
	}
	return names
}
