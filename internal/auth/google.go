// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"os"
)

// Google supplies GCP credentials for terraform and for the gcs backend.
// Credentials are file based; the SDK picks up its own ambient chain when no
// file is configured.
type Google struct {
	tag       string
	credsPath string
	project   string
	region    string
	bucket    string
	prefix    string
}

func newGoogleTagged(tag string, opts *RootOptions) (Authenticator, error) {
	g := &Google{
		tag:       tag,
		credsPath: opts.GoogleCredsPath,
		project:   opts.GoogleProject,
		region:    opts.GoogleRegion,
		bucket:    opts.BackendBucket,
		prefix:    opts.BackendPrefix,
	}
	if g.credsPath != "" {
		if _, err := os.Stat(g.credsPath); err != nil {
			return nil, fmt.Errorf("google credentials file %s: %w", g.credsPath, err)
		}
	}
	return g, nil
}

func newGoogle(_ context.Context, opts *RootOptions) (Authenticator, error) {
	return newGoogleTagged(TagGoogle, opts)
}

// newGoogleBeta is a distinct variant so definitions can pin the beta
// provider while sharing the google credential configuration.
func newGoogleBeta(_ context.Context, opts *RootOptions) (Authenticator, error) {
	return newGoogleTagged(TagGoogleBeta, opts)
}

// Tag implements Authenticator.
func (g *Google) Tag() string { return g.tag }

// Env implements Authenticator.
func (g *Google) Env() map[string]string {
	result := map[string]string{}
	if g.credsPath != "" {
		result["GOOGLE_APPLICATION_CREDENTIALS"] = g.credsPath
	}
	if g.project != "" {
		result["GOOGLE_PROJECT"] = g.project
	}
	return result
}

// CredsPath returns the credentials file path, empty when ambient.
func (g *Google) CredsPath() string { return g.credsPath }

// Project returns the configured GCP project.
func (g *Google) Project() string { return g.project }

// Region returns the configured GCP region.
func (g *Google) Region() string { return g.region }

// Bucket returns the state bucket name.
func (g *Google) Bucket() string { return g.bucket }

// Prefix returns the state object prefix.
func (g *Google) Prefix() string { return g.prefix }
