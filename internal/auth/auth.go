// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
)

// RootOptions is the flat configuration bundle assembled by the root command.
// It is the sole input to authenticator construction.
type RootOptions struct {
	Deployment string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSProfile         string
	AWSRegion          string
	AWSRoleARN         string

	GoogleCredsPath string
	GoogleProject   string
	GoogleRegion    string

	BackendRegion string
	BackendBucket string
	BackendPrefix string
}

// Authenticator supplies access details for a cloud backend. Instances are
// immutable after construction and owned by the Collection.
type Authenticator interface {
	// Tag returns the stable identifier of the variant, e.g. "aws".
	Tag() string
	// Env returns shell-safe environment exports for terraform and hook
	// subprocesses. An inactive authenticator returns an empty map.
	Env() map[string]string
}

// UnknownAuthenticatorError is returned by tag lookups that match no
// registered variant.
type UnknownAuthenticatorError struct {
	Tag string
}

func (e *UnknownAuthenticatorError) Error() string {
	return fmt.Sprintf("%s is not a known authenticator", e.Tag)
}

// ConstructionError wraps a variant constructor failure. Construction is all
// or nothing, so one of these aborts the whole collection build.
type ConstructionError struct {
	Tag string
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("building authenticator %s: %v", e.Tag, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// variant pairs a tag with its constructor. The set of variants is closed;
// new providers extend this list, not the call sites.
type variant struct {
	tag   string
	build func(ctx context.Context, opts *RootOptions) (Authenticator, error)
}

// all is the closed registry of known authenticator variants, in construction
// order.
var all = []variant{
	{tag: TagAWS, build: newAWS},
	{tag: TagGoogle, build: newGoogle},
	{tag: TagGoogleBeta, build: newGoogleBeta},
}

// Tags of the known variants.
const (
	TagAWS        = "aws"
	TagGoogle     = "google"
	TagGoogleBeta = "google-beta"
)
