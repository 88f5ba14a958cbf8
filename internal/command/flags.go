// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os"
	"os/exec"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

// DefaultConfigFile is used when neither the flag nor the environment names
// a deployment config.
const DefaultConfigFile = "./worker.yaml"

// ConfigFilePath resolves the deployment config path before flag parsing,
// value sources for the other flags need it up front.
func ConfigFilePath() string {
	if path := os.Getenv("TFRUNNER_CONFIG_FILE"); path != "" {
		return path
	}
	return DefaultConfigFile
}

// NewRootFlags returns the flags shared by every deployment-facing command:
// credentials, backend addressing and the config file. String flag values
// fall back to the worker_options section of the config file.
func NewRootFlags() []cli.Flag {
	cfg := ConfigFilePath()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config-file",
			Usage: "deployment configuration file",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_CONFIG_FILE"),
			),
			Value: DefaultConfigFile,
		},
		&cli.StringFlag{
			Name:  "repository-path",
			Usage: "the path to the repository holding definitions",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_REPOSITORY_PATH"),
			),
			Value: ".",
		},
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "backend",
			Usage: "backend to use for terraform state (s3, gcs)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_BACKEND"),
			),
			Value: "s3",
			Validator: func(value string) error {
				return backendTagValidator(value)
			},
		}),
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "backend-bucket",
			Usage: "the bucket for storing terraform state",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_BACKEND_BUCKET"),
			),
		}),
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "backend-prefix",
			Usage: "the prefix in the bucket for the definitions to use",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_BACKEND_PREFIX"),
			),
		}),
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "backend-region",
			Usage: "the region where the terraform state bucket exists",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_BACKEND_REGION"),
			),
		}),
		&cli.StringFlag{
			Name:  "aws-access-key-id",
			Usage: "AWS access key",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("AWS_ACCESS_KEY_ID"),
			),
		},
		&cli.StringFlag{
			Name:  "aws-secret-access-key",
			Usage: "AWS access key secret",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("AWS_SECRET_ACCESS_KEY"),
			),
		},
		&cli.StringFlag{
			Name:  "aws-session-token",
			Usage: "AWS access key session token",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("AWS_SESSION_TOKEN"),
			),
		},
		&cli.StringFlag{
			Name:  "aws-role-arn",
			Usage: "if provided, credentials will be used to assume this role",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("AWS_ROLE_ARN"),
			),
		},
		&cli.StringFlag{
			Name:  "aws-profile",
			Usage: "the AWS shared credentials profile to use",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("AWS_PROFILE"),
			),
		},
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "aws-region",
			Usage: "AWS region to build in",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("AWS_DEFAULT_REGION"),
			),
			Value: "us-east-1",
		}),
		&cli.StringFlag{
			Name:  "gcp-creds-path",
			Usage: "path to the GCP credentials file",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("GOOGLE_APPLICATION_CREDENTIALS"),
			),
		},
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "gcp-project",
			Usage: "GCP project to build in",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("GOOGLE_PROJECT"),
			),
		}),
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "gcp-region",
			Usage: "GCP region to build in",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("GOOGLE_REGION"),
			),
		}),
	}
}

// limitFlag restricts operations to the named definitions.
func limitFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:    "limit",
		Aliases: []string{"l"},
		Usage:   "limit operations to the named definitions",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("TFRUNNER_LIMIT"),
		),
	}
}

// workerOptionFlag chains the config file's worker_options section into the
// flag's value sources, after the environment so explicit settings win.
func workerOptionFlag(path string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML("terraform.worker_options."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)
	return flag
}

// workerOptionBoolFlag is workerOptionFlag for bool flags.
func workerOptionBoolFlag(path string, flag *cli.BoolFlag) *cli.BoolFlag {
	src := yaml.YAML("terraform.worker_options."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)
	return flag
}

// defaultTerraformBin finds terraform on PATH, preferring terraform over
// tofu.
func defaultTerraformBin() string {
	for _, name := range []string{"terraform", "tofu"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
