// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package auth implements the credential-provider registry. A Collection is
// built once per invocation from the root options and holds one instance of
// every known variant (aws, google, google-beta), addressable by position or
// by tag.
package auth
