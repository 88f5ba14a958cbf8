// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package definitions

import (
	"fmt"
	"strings"

	"github.com/tfrunner/tfrunner/internal/log"
)

// Named is one definition entry in configuration order.
type Named struct {
	Name       string
	Definition *Definition
}

// Collection holds a deployment's definitions in configuration order, which
// is also apply order.
type Collection struct {
	order  []string
	byName map[string]*Definition
}

// NewCollection validates and orders the configured definitions. With a
// limiter only the named definitions are kept, except definitions marked
// always_include which survive any limit.
func NewCollection(items []Named, limiter []string) (*Collection, error) {
	limited := make(map[string]bool, len(limiter))
	for _, name := range limiter {
		limited[name] = true
	}

	c := &Collection{byName: make(map[string]*Definition, len(items))}
	for _, item := range items {
		if strings.Contains(item.Name, ",") {
			return nil, fmt.Errorf("definition name %q contains a comma", item.Name)
		}
		if _, ok := c.byName[item.Name]; ok {
			return nil, fmt.Errorf("definition %s is configured twice", item.Name)
		}
		d := item.Definition
		if d == nil {
			d = &Definition{}
		}
		d.Name = item.Name
		if d.Path == "" {
			return nil, fmt.Errorf("definition %s has no path", item.Name)
		}
		if len(limiter) > 0 && !limited[item.Name] {
			if !d.AlwaysInclude {
				log.Tracef("definition %s not in limit, skipping", item.Name)
				continue
			}
			log.Tracef("definition %s has always_include, kept despite limit", item.Name)
		}
		c.order = append(c.order, item.Name)
		c.byName[item.Name] = d
	}

	for _, name := range limiter {
		if _, ok := c.byName[name]; !ok {
			return nil, fmt.Errorf("limit names unknown definition %s", name)
		}
	}
	return c, nil
}

// Len reports the number of definitions.
func (c *Collection) Len() int { return len(c.order) }

// Names returns the definition names in apply order.
func (c *Collection) Names() []string {
	return append([]string(nil), c.order...)
}

// Get returns a definition by name.
func (c *Collection) Get(name string) (*Definition, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Each calls fn for every definition in apply order, stopping on error.
func (c *Collection) Each(fn func(*Definition) error) error {
	for _, name := range c.order {
		if err := fn(c.byName[name]); err != nil {
			return err
		}
	}
	return nil
}

// EachReversed calls fn for every definition in reverse order, the order
// used for destroys.
func (c *Collection) EachReversed(fn func(*Definition) error) error {
	for i := len(c.order) - 1; i >= 0; i-- {
		if err := fn(c.byName[c.order[i]]); err != nil {
			return err
		}
	}
	return nil
}
