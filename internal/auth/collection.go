// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"

	"github.com/tfrunner/tfrunner/internal/log"
)

// Collection is the ordered, deduplicated registry of authenticator instances
// for a single command invocation. It is read-only after construction.
type Collection struct {
	order []string
	byTag map[string]Authenticator
}

// NewCollection builds one instance of every known variant, in registry
// order, passing opts to each constructor. There are no partial registries:
// the first constructor failure aborts the build with a *ConstructionError.
func NewCollection(ctx context.Context, opts *RootOptions) (*Collection, error) {
	c := &Collection{
		byTag: make(map[string]Authenticator, len(all)),
	}
	for _, v := range all {
		a, err := v.build(ctx, opts)
		if err != nil {
			return nil, &ConstructionError{Tag: v.tag, Err: err}
		}
		c.order = append(c.order, v.tag)
		c.byTag[v.tag] = a
		log.Debugf("authenticator %s created", v.tag)
	}
	return c, nil
}

// Len returns the number of authenticators, which always equals the size of
// the closed registry.
func (c *Collection) Len() int {
	return len(c.order)
}

// Get returns the authenticator at the given position in construction order.
func (c *Collection) Get(i int) (Authenticator, error) {
	if i < 0 || i >= len(c.order) {
		return nil, fmt.Errorf("authenticator index %d out of range [0,%d)", i, len(c.order))
	}
	return c.byTag[c.order[i]], nil
}

// GetByTag returns the authenticator whose tag exactly matches the key.
func (c *Collection) GetByTag(tag string) (Authenticator, error) {
	a, ok := c.byTag[tag]
	if !ok {
		return nil, &UnknownAuthenticatorError{Tag: tag}
	}
	return a, nil
}

// Tags returns the tags in construction order.
func (c *Collection) Tags() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Each calls fn for every authenticator in construction order, stopping on
// the first error.
func (c *Collection) Each(fn func(Authenticator) error) error {
	for _, tag := range c.order {
		if err := fn(c.byTag[tag]); err != nil {
			return err
		}
	}
	return nil
}
