// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package copier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNew_SelectsGitForRemoteSources(t *testing.T) {
	t.Parallel()

	for _, source := range []string{
		"git@github.com:example/definitions.git",
		"https://github.com/example/definitions.git",
		"ssh://git@github.com/example/definitions",
	} {
		c, err := New(source, Options{})
		require.NoError(t, err)
		assert.IsType(t, &gitCopier{}, c, source)
	}
}

func TestNew_SelectsFSForDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "definitions/network/main.tf", "")

	c, err := New("definitions/network", Options{RootPath: root})
	require.NoError(t, err)
	assert.IsType(t, &fsCopier{}, c)
}

func TestNew_MissingSource(t *testing.T) {
	t.Parallel()

	_, err := New("definitions/nope", Options{RootPath: t.TempDir()})
	assert.Error(t, err)
}

func TestFSCopier_Copy(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "network/main.tf", `resource "aws_vpc" "main" {}`)
	writeFile(t, root, "network/modules/dns/main.tf", "")
	writeFile(t, root, "network/.terraform/providers/cache", "")
	writeFile(t, root, "network/terraform.tfstate.backup", "")

	c, err := New("network", Options{RootPath: root})
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "work")
	require.NoError(t, c.Copy(context.Background(), dst))

	assert.FileExists(t, filepath.Join(dst, "main.tf"))
	assert.FileExists(t, filepath.Join(dst, "modules/dns/main.tf"))
	assert.NoFileExists(t, filepath.Join(dst, ".terraform/providers/cache"))
	assert.NoFileExists(t, filepath.Join(dst, "terraform.tfstate.backup"))
}

func TestFSCopier_ReservedFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "network/main.tf", "")
	writeFile(t, root, "network/terraform.tf", "terraform {}")

	c, err := New("network", Options{RootPath: root})
	require.NoError(t, err)

	err = c.Copy(context.Background(), filepath.Join(t.TempDir(), "work"))
	var rerr *ReservedFileError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Error(), "terraform.tf")
}
