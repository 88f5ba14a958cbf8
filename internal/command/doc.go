// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package command defines the CLI command set for tfrunner. It wires flags,
// validators and actions for the terraform, clean, env and version
// subcommands.
package command
