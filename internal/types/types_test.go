// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_String(t *testing.T) {
	t.Parallel()

	want := map[Action]string{
		ActionInit:    "init",
		ActionPlan:    "plan",
		ActionApply:   "apply",
		ActionDestroy: "destroy",
	}
	for a, s := range want {
		assert.Equal(t, s, a.String())
	}
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	for _, a := range Actions {
		got, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	_, err := ParseAction("refresh")
	assert.Error(t, err)
}

func TestStage_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pre", StagePre.String())
	assert.Equal(t, "post", StagePost.String())
}

func TestParseStage(t *testing.T) {
	t.Parallel()

	for _, s := range Stages {
		got, err := ParseStage(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStage("mid")
	assert.Error(t, err)
}

func TestHookVarType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TF_VAR", HookVarVar.String())
	assert.Equal(t, "TF_REMOTE", HookVarRemote.String())
	assert.Equal(t, "TF_EXTRA", HookVarExtra.String())
}
