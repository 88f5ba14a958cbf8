// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package backend defines the remote state-store contract shared by the s3
// and gcs implementations, plus the emptiness validation that gates
// destructive state cleanup.
package backend
