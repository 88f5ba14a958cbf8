// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/tfrunner/tfrunner/internal/auth"
	"github.com/tfrunner/tfrunner/internal/meta"
)

// envCommandAction prints the environment the runner would hand to
// terraform as shell exports, so `eval "$(tfrunner env ...)"` reproduces the
// runner's credentials for manual terraform commands.
func envCommandAction(ctx context.Context, cmd *cli.Command) error {
	authers, err := auth.NewCollection(ctx, rootOptions(cmd, cmd.Args().First()))
	if err != nil {
		return err
	}

	env := authEnv(authers)
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(os.Stdout, "export %s=%s\n", k, env[k])
	}
	return nil
}

// envCommandBuilder constructs the cli.Command for "env".
func envCommandBuilder(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "env",
		Usage:     "print authentication environment exports for a shell to eval",
		UsageText: "tfrunner env [options] [DEPLOYMENT]",
		Metadata: map[string]any{
			"meta": m,
		},
		Flags:  NewRootFlags(),
		Action: envCommandAction,
	}
}
