// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package meta

import (
	"context"
)

// Meta contains runtime metadata shared by commands. It carries the raw CLI
// arguments, the base context, and the working directory the process started
// in, which actions restore after changing directories.
type Meta struct {
	Args        []string
	Context     context.Context
	StartingDir string
}
