// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoPath(t *testing.T) {
	tests := []struct {
		name       string
		repoPath   func(t *testing.T) string
		wantBranch string
		wantErr    bool
	}{
		{
			name: "absolute_path_no_branch",
			repoPath: func(t *testing.T) string {
				return t.TempDir()
			},
		},
		{
			name: "absolute_path_with_branch",
			repoPath: func(t *testing.T) string {
				return t.TempDir() + "::release"
			},
			wantBranch: "release",
		},
		{
			name: "relative_path",
			repoPath: func(t *testing.T) string {
				tmpDir := t.TempDir()
				oldCwd, err := os.Getwd()
				require.NoError(t, err)
				require.NoError(t, os.Chdir(filepath.Dir(tmpDir)))
				t.Cleanup(func() {
					_ = os.Chdir(oldCwd)
				})
				return filepath.Base(tmpDir)
			},
		},
		{
			name: "remote_git_source",
			repoPath: func(t *testing.T) string {
				return "git@github.com:example/definitions.git::v2"
			},
			wantBranch: "v2",
		},
		{
			name: "missing_directory",
			repoPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope")
			},
			wantErr: true,
		},
		{
			name: "file_not_directory",
			repoPath: func(t *testing.T) string {
				f := filepath.Join(t.TempDir(), "worker.yaml")
				require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
				return f
			},
			wantErr: true,
		},
		{
			name: "empty",
			repoPath: func(t *testing.T) string {
				return ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := tt.repoPath(t)

			dir, branch, err := ParseRepoPath(spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBranch, branch)
			assert.True(t, filepath.IsAbs(dir) || dir == "git@github.com:example/definitions.git")
		})
	}
}
