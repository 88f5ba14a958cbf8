// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"

	"github.com/tfrunner/tfrunner/internal/types"
)

// Tags of the known backend variants.
const (
	TagBase = "base"
	TagS3   = "s3"
	TagGCS  = "gcs"
)

// Backend abstracts a remote state store. Concrete variants own their
// connection details; callers must serialize mutations per state target.
type Backend interface {
	// Tag returns the stable identifier of the variant.
	Tag() string
	// Hcl renders the terraform backend configuration block for the
	// definition called name.
	Hcl(name string) string
	// DataHcl renders terraform_remote_state data blocks for the given
	// definition tags, in order. Empty input yields an empty result.
	DataHcl(tags []string) string
	// Clean removes state and lock artifacts for the deployment, scoped to
	// the limit tags when provided. It is safe to call when nothing exists
	// to clean, but refuses to remove non-empty state.
	Clean(ctx context.Context, deployment string, limit []string) error
	// Remotes lists the definition names that currently have remote state.
	Remotes(ctx context.Context) ([]string, error)
}

// Base is the non-concrete backend contract. Its operations are inert
// defaults; concrete variants implement the real behavior.
type Base struct{}

// Tag returns the placeholder tag of the abstract contract.
func (Base) Tag() string { return TagBase }

// Hcl renders nothing for the abstract contract.
func (Base) Hcl(string) string { return "" }

// DataHcl renders nothing for the abstract contract.
func (Base) DataHcl([]string) string { return "" }

// Clean is a no-op for the abstract contract.
func (Base) Clean(context.Context, string, []string) error { return nil }

// Remotes returns nothing for the abstract contract.
func (Base) Remotes(context.Context) ([]string, error) { return nil, nil }

// ValidateBackendEmpty reports whether a parsed state document tracks zero
// managed resources. A document without a resources key is structurally
// invalid and fails with a *BackendError; destructive operations gated on
// this result must not proceed in that case. It never reports empty for a
// state that still holds resources.
func ValidateBackendEmpty(state types.JSONType) (bool, error) {
	doc, ok := state.(map[string]any)
	if !ok {
		return false, &BackendError{Message: "state document is not a mapping"}
	}
	resources, ok := doc["resources"]
	if !ok {
		return false, &BackendError{
			Message: "resources key does not exist in state",
			Help:    "the document is not a valid terraform state file",
		}
	}
	list, ok := resources.([]any)
	if !ok {
		return false, &BackendError{Message: "resources key is not a list"}
	}
	return len(list) == 0, nil
}
