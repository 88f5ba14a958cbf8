// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package state parses raw Terraform state documents fetched from a
// backend, transparently decrypting passphrase-encrypted OpenTofu state.
package state
