// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"embed"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/*.tfstate
var testDataFS embed.FS

func loadState(t *testing.T, name string) map[string]any {
	t.Helper()
	raw, err := testDataFS.ReadFile("testdata/" + name)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestBase_Defaults(t *testing.T) {
	t.Parallel()

	var b Base
	assert.Equal(t, "base", b.Tag())
	assert.Empty(t, b.Hcl(""))
	assert.Empty(t, b.DataHcl(nil))
	assert.NoError(t, b.Clean(context.Background(), "", nil))

	remotes, err := b.Remotes(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, remotes)
}

func TestValidateBackendEmpty_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ValidateBackendEmpty(map[string]any{})
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Contains(t, berr.Error(), "resources key does not exist")

	_, err = ValidateBackendEmpty("not a document")
	require.ErrorAs(t, err, &berr)

	_, err = ValidateBackendEmpty(map[string]any{"resources": "nope"})
	require.ErrorAs(t, err, &berr)
}

func TestValidateBackendEmpty_Empty(t *testing.T) {
	t.Parallel()

	empty, err := ValidateBackendEmpty(loadState(t, "empty.tfstate"))
	require.NoError(t, err)
	assert.True(t, empty)
}

// A false positive here would green-light deleting live state, so the
// occupied case is the one that must never flip.
func TestValidateBackendEmpty_Occupied(t *testing.T) {
	t.Parallel()

	empty, err := ValidateBackendEmpty(loadState(t, "occupied.tfstate"))
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestBackendError_HelpText(t *testing.T) {
	t.Parallel()

	withHelp := &BackendError{Message: "bad state", Help: "check the bucket"}
	assert.Equal(t, "check the bucket", withHelp.HelpText())

	without := &BackendError{Message: "bad state"}
	assert.Equal(t, "No help available", without.HelpText())
}
