// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package config loads the deployment configuration file. The file is
// rendered through text/template before parsing, so values can reference CLI
// options through {{.var}} and the process environment through {{.env}}.
// YAML is the native format; a file ending in .hcl is parsed with the HCL
// toolchain instead. The definition and provider orders in the file are
// preserved, they drive apply and destroy ordering.
package config
