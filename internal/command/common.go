// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tfrunner/tfrunner/internal/auth"
	"github.com/tfrunner/tfrunner/internal/backend"
	"github.com/tfrunner/tfrunner/internal/backend/gcs"
	"github.com/tfrunner/tfrunner/internal/backend/s3"
	"github.com/tfrunner/tfrunner/internal/meta"
)

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// rootOptions assembles the authenticator option bundle from parsed flags.
func rootOptions(cmd *cli.Command, deployment string) *auth.RootOptions {
	return &auth.RootOptions{
		Deployment: deployment,

		AWSAccessKeyID:     cmd.String("aws-access-key-id"),
		AWSSecretAccessKey: cmd.String("aws-secret-access-key"),
		AWSSessionToken:    cmd.String("aws-session-token"),
		AWSProfile:         cmd.String("aws-profile"),
		AWSRegion:          cmd.String("aws-region"),
		AWSRoleARN:         cmd.String("aws-role-arn"),

		GoogleCredsPath: cmd.String("gcp-creds-path"),
		GoogleProject:   cmd.String("gcp-project"),
		GoogleRegion:    cmd.String("gcp-region"),

		BackendRegion: cmd.String("backend-region"),
		BackendBucket: cmd.String("backend-bucket"),
		BackendPrefix: cmd.String("backend-prefix"),
	}
}

// newBackend constructs the backend selected by the --backend flag.
func newBackend(ctx context.Context, cmd *cli.Command, authers *auth.Collection, deployment string) (backend.Backend, error) {
	tag := cmd.String("backend")
	switch tag {
	case backend.TagS3:
		return s3.NewBackendS3(ctx, authers, deployment)
	case backend.TagGCS:
		return gcs.NewBackendGCS(ctx, authers, deployment)
	}
	return nil, fmt.Errorf("unknown backend %q", tag)
}

// templateVars exposes flag values to config file templates under .var.
func templateVars(cmd *cli.Command, deployment string) map[string]string {
	vars := map[string]string{"deployment": deployment}
	for _, name := range []string{
		"aws-region", "backend", "backend-bucket", "backend-prefix",
		"backend-region", "gcp-project", "gcp-region", "repository-path",
	} {
		key := strings.ReplaceAll(name, "-", "_")
		vars[key] = cmd.String(name)
	}
	return vars
}

// limitValues splits --limit values on commas so both repeated flags and a
// single comma separated value work.
func limitValues(cmd *cli.Command) []string {
	var limit []string
	for _, raw := range cmd.StringSlice("limit") {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				limit = append(limit, item)
			}
		}
	}
	return limit
}

// authEnv flattens every authenticator's exports into one map.
func authEnv(authers *auth.Collection) map[string]string {
	env := map[string]string{}
	_ = authers.Each(func(a auth.Authenticator) error {
		for k, v := range a.Env() {
			env[k] = v
		}
		return nil
	})
	return env
}
