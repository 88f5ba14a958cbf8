// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `terraform:
  worker_options:
    backend: s3
    backend-bucket: alphabet
    b64-encode: true
  remote_vars:
    vpc_id: network.outputs.vpc_id
  template_vars:
    environment: staging
  terraform_vars:
    region: {{.var.region}}
  providers:
    aws:
      requirements:
        version: 5.54.0
        source: hashicorp/aws
      vars:
        region: {{.var.region}}
    random:
      requirements:
        version: 3.6.2
  definitions:
    network:
      path: definitions/network
    compute:
      path: definitions/compute
      always_apply: true
      terraform_vars:
        instance_count: 3
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "worker.yaml", yamlConfig)
	cfg, err := Load(path, map[string]string{"region": "us-east-1"})
	require.NoError(t, err)

	require.Len(t, cfg.Definitions, 2)
	assert.Equal(t, "network", cfg.Definitions[0].Name)
	assert.Equal(t, "compute", cfg.Definitions[1].Name)
	assert.Equal(t, "definitions/network", cfg.Definitions[0].Definition.Path)
	assert.True(t, cfg.Definitions[1].Definition.AlwaysApply)
	assert.Equal(t, 3, cfg.Definitions[1].Definition.TerraformVars["instance_count"])

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "aws", cfg.Providers[0].Name)
	assert.Equal(t, "5.54.0", cfg.Providers[0].Config.Requirements.Version)
	assert.Equal(t, "us-east-1", cfg.Providers[0].Config.Vars["region"])

	assert.Equal(t, "network.outputs.vpc_id", cfg.RemoteVars["vpc_id"])
	assert.Equal(t, "staging", cfg.TemplateVars["environment"])
	assert.Equal(t, "us-east-1", cfg.TerraformVars["region"])
}

func TestLoad_WorkerOptions(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "worker.yaml", yamlConfig)
	cfg, err := Load(path, map[string]string{"region": "us-east-1"})
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.WorkerOptions["backend"])
	assert.Equal(t, true, cfg.WorkerOptions["b64-encode"])
	assert.NotContains(t, cfg.WorkerOptions, "nope")
}

func TestLoad_EnvTemplate(t *testing.T) {
	t.Setenv("TFRUNNER_TEST_BUCKET", "alphabet")

	path := writeConfig(t, "worker.yaml", `terraform:
  worker_options:
    backend-bucket: {{.env.TFRUNNER_TEST_BUCKET}}
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "alphabet", cfg.WorkerOptions["backend-bucket"])
}

func TestLoad_MissingTemplateVar(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "worker.yaml", `terraform:
  terraform_vars:
    region: {{.var.region}}
`)
	_, err := Load(path, nil)
	assert.ErrorContains(t, err, "invalid template substitutions")
}

func TestLoad_NoTerraformSection(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "worker.yaml", "other: {}\n")
	_, err := Load(path, nil)
	assert.ErrorContains(t, err, "no terraform section")
}

func TestLoad_UnknownKey(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "worker.yaml", "terraform:\n  bogus: {}\n")
	_, err := Load(path, nil)
	assert.ErrorContains(t, err, "unknown terraform section key")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "failed to read config file")
}

const hclConfig = `terraform {
  worker_options {
    backend = "s3"
  }
  remote_vars {
    vpc_id = "network.outputs.vpc_id"
  }
  terraform_vars {
    region = "{{.var.region}}"
    count  = 3
  }
  providers {
    aws {
      requirements {
        version = "5.54.0"
        source  = "hashicorp/aws"
      }
      vars {
        region = "{{.var.region}}"
      }
    }
  }
  definitions {
    network {
      path = "definitions/network"
    }
    compute {
      path         = "definitions/compute"
      always_apply = true
    }
  }
}
`

func TestLoad_HCL(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "worker.hcl", hclConfig)
	cfg, err := Load(path, map[string]string{"region": "us-east-1"})
	require.NoError(t, err)

	require.Len(t, cfg.Definitions, 2)
	assert.Equal(t, "network", cfg.Definitions[0].Name)
	assert.True(t, cfg.Definitions[1].Definition.AlwaysApply)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "aws", cfg.Providers[0].Name)
	assert.Equal(t, "5.54.0", cfg.Providers[0].Config.Requirements.Version)
	assert.Equal(t, "us-east-1", cfg.Providers[0].Config.Vars["region"])

	assert.Equal(t, "network.outputs.vpc_id", cfg.RemoteVars["vpc_id"])
	assert.Equal(t, 3, cfg.TerraformVars["count"])

	assert.Equal(t, "s3", cfg.WorkerOptions["backend"])
}
