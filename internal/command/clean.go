// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/tfrunner/tfrunner/internal/auth"
	"github.com/tfrunner/tfrunner/internal/log"
	"github.com/tfrunner/tfrunner/internal/meta"
)

// cleanCommandAction removes a deployment's state artifacts: state objects
// under the deployment prefix and, for a full clean, the lock table. The
// backend refuses to remove state that still tracks resources.
func cleanCommandAction(ctx context.Context, cmd *cli.Command) error {
	deployment := cmd.Args().First()
	if err := validateDeployment(deployment); err != nil {
		return err
	}

	authers, err := auth.NewCollection(ctx, rootOptions(cmd, deployment))
	if err != nil {
		return err
	}

	be, err := newBackend(ctx, cmd, authers, deployment)
	if err != nil {
		return err
	}

	log.Infof("cleaning deployment %s", deployment)
	if err := be.Clean(ctx, deployment, limitValues(cmd)); err != nil {
		return err
	}
	log.Infof("deployment %s cleaned", deployment)
	return nil
}

// cleanCommandBuilder constructs the cli.Command for "clean".
func cleanCommandBuilder(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "clean up terraform state for a deployment",
		UsageText: "tfrunner clean [options] DEPLOYMENT",
		Metadata: map[string]any{
			"meta": m,
		},
		Flags:  append([]cli.Flag{limitFlag()}, NewRootFlags()...),
		Action: cleanCommandAction,
	}
}
