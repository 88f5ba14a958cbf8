// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/tfrunner/tfrunner/internal/auth"
	"github.com/tfrunner/tfrunner/internal/backend"
	"github.com/tfrunner/tfrunner/internal/config"
	"github.com/tfrunner/tfrunner/internal/copier"
	"github.com/tfrunner/tfrunner/internal/definitions"
	"github.com/tfrunner/tfrunner/internal/hooks"
	"github.com/tfrunner/tfrunner/internal/log"
	"github.com/tfrunner/tfrunner/internal/meta"
	"github.com/tfrunner/tfrunner/internal/providers"
	"github.com/tfrunner/tfrunner/internal/tfexec"
	"github.com/tfrunner/tfrunner/internal/types"
	"github.com/tfrunner/tfrunner/internal/util"
)

// runner carries the resolved state of one terraform command invocation.
type runner struct {
	deployment string
	workingDir string
	ownWorkDir bool

	authers     *auth.Collection
	backend     backend.Backend
	providers   *providers.Collection
	definitions *definitions.Collection
	cfg         *config.Config
	tf          *tfexec.Terraform

	planFor           types.Action
	apply             bool
	force             bool
	showOutput        bool
	b64Encode         bool
	useBackendRemotes bool
	planPath          string
	repoPath          string
	repoBranch        string
}

func terraformCommandAction(ctx context.Context, cmd *cli.Command) error {
	deployment := cmd.Args().First()
	if err := validateDeployment(deployment); err != nil {
		return err
	}
	if cmd.Bool("apply") && cmd.Bool("destroy") {
		return fmt.Errorf("--apply and --destroy are mutually exclusive")
	}

	r, err := newRunner(ctx, cmd, deployment)
	if err != nil {
		return err
	}
	defer r.cleanup()

	return r.exec(ctx)
}

// newRunner resolves flags, config, authenticators, backend and collections
// into a ready-to-execute runner.
func newRunner(ctx context.Context, cmd *cli.Command, deployment string) (*runner, error) {
	r := &runner{
		deployment:        deployment,
		apply:             cmd.Bool("apply") || cmd.Bool("destroy"),
		force:             cmd.Bool("force-apply"),
		showOutput:        cmd.Bool("show-output"),
		b64Encode:         cmd.Bool("b64-encode"),
		useBackendRemotes: cmd.Bool("backend-use-all-remotes"),
		planPath:          cmd.String("plan-file-path"),
		planFor:           types.ActionApply,
	}
	repoPath, repoBranch, err := util.ParseRepoPath(cmd.String("repository-path"))
	if err != nil {
		return nil, fmt.Errorf("invalid repository path %q: %w", cmd.String("repository-path"), err)
	}
	r.repoPath = repoPath
	r.repoBranch = repoBranch
	if cmd.Bool("destroy") {
		r.planFor = types.ActionDestroy
	}

	authers, err := auth.NewCollection(ctx, rootOptions(cmd, deployment))
	if err != nil {
		return nil, err
	}
	r.authers = authers

	cfg, err := config.Load(cmd.String("config-file"), templateVars(cmd, deployment))
	if err != nil {
		return nil, err
	}
	r.cfg = cfg

	defs, err := definitions.NewCollection(cfg.Definitions, limitValues(cmd))
	if err != nil {
		return nil, err
	}
	r.definitions = defs

	provs, err := providers.NewCollection(cfg.Providers, authers)
	if err != nil {
		return nil, err
	}
	r.providers = provs

	be, err := newBackend(ctx, cmd, authers, deployment)
	if err != nil {
		return nil, err
	}
	r.backend = be

	if r.workingDir = cmd.String("working-dir"); r.workingDir == "" {
		dir, err := os.MkdirTemp("", "tfrunner-"+deployment+"-")
		if err != nil {
			return nil, fmt.Errorf("failed to create working directory: %w", err)
		}
		r.workingDir = dir
		r.ownWorkDir = true
	}

	bin := cmd.String("terraform-bin")
	if bin == "" {
		if bin = defaultTerraformBin(); bin == "" {
			return nil, fmt.Errorf("terraform binary not found, set --terraform-bin")
		}
	}
	env := authEnv(authers)
	env["TF_PLUGIN_CACHE_DIR"] = filepath.Join(r.workingDir, "terraform-plugins")
	r.tf = tfexec.New(bin, tfexec.WithEnv(env))

	if err := os.MkdirAll(env["TF_PLUGIN_CACHE_DIR"], 0o755); err != nil {
		return nil, err
	}
	return r, nil
}

// cleanup removes the working directory when the runner created it.
func (r *runner) cleanup() {
	if !r.ownWorkDir {
		return
	}
	if err := os.RemoveAll(r.workingDir); err != nil {
		log.Warnf("failed to remove working directory %s: %v", r.workingDir, err)
	}
}

// exec drives the full flow: version check, module staging, then for each
// definition prep, init, plan and the gated apply or destroy. Destroys
// walk the definitions in reverse.
func (r *runner) exec(ctx context.Context) error {
	if _, _, err := r.tf.Version(ctx); err != nil {
		return err
	}
	if err := r.prepModules(ctx); err != nil {
		return err
	}

	each := r.definitions.Each
	if r.planFor == types.ActionDestroy {
		each = r.definitions.EachReversed
	}
	return each(func(d *definitions.Definition) error {
		return r.execDefinition(ctx, d)
	})
}

// prepModules stages the shared terraform-modules tree next to the
// definitions so relative module sources keep working.
func (r *runner) prepModules(ctx context.Context) error {
	src := filepath.Join(r.repoPath, "terraform-modules")
	if _, err := os.Stat(src); err != nil {
		log.Debugf("no terraform-modules directory in %s", r.repoPath)
		return nil
	}
	c, err := copier.New("terraform-modules", copier.Options{RootPath: r.repoPath, Branch: r.repoBranch})
	if err != nil {
		return err
	}
	dst := filepath.Join(r.workingDir, "terraform-modules")
	log.Infof("copying modules from %s to %s", src, dst)
	return c.Copy(ctx, dst)
}

// prepOptions assembles the deployment-wide prep state handed to every
// definition.
func (r *runner) prepOptions() *definitions.PrepOptions {
	return &definitions.PrepOptions{
		Backend:             r.backend,
		Providers:           r.providers,
		WorkingDir:          r.workingDir,
		RepoPath:            r.repoPath,
		Branch:              r.repoBranch,
		GlobalTerraformVars: r.cfg.TerraformVars,
		GlobalRemoteVars:    r.cfg.RemoteVars,
		GlobalTemplateVars:  r.cfg.TemplateVars,
		UseBackendRemotes:   r.useBackendRemotes,
	}
}

func (r *runner) execDefinition(ctx context.Context, d *definitions.Definition) error {
	log.Infof("preparing definition: %s", d.Name)
	if err := definitions.Prep(ctx, d, r.prepOptions()); err != nil {
		return err
	}

	target := d.TargetPath(r.workingDir)
	if err := r.tf.Run(ctx, target, types.ActionInit, tfexec.RunOptions{
		Definition: d.Name,
		ShowOutput: r.showOutput,
	}); err != nil {
		return fmt.Errorf("error running terraform init for %s: %w", d.Name, err)
	}

	changed, err := r.plan(ctx, d, target)
	if err != nil {
		return err
	}
	d.NeedsApply = changed

	if r.force && !changed {
		log.Warnf("force %s for %s", r.planFor, d.Name)
		changed = true
	}
	if !changed {
		log.Infof("no plan changes for %s", d.Name)
		return nil
	}
	if !r.apply {
		log.Warnf("plan changes for %s, but neither --apply nor --destroy given", d.Name)
		return nil
	}

	log.Infof("plan changes for %s, running %s", d.Name, r.planFor)
	if err := r.runStaged(ctx, d, target, r.planFor); err != nil {
		return err
	}
	log.Infof("terraform %s complete for %s", r.planFor, d.Name)
	return nil
}

// plan runs terraform plan bracketed by hooks and reports whether the plan
// found changes.
func (r *runner) plan(ctx context.Context, d *definitions.Definition, target string) (bool, error) {
	if r.planPath != "" {
		d.PlanFile = filepath.Join(r.planPath, fmt.Sprintf("%s_%s.tfplan", r.deployment, d.Name))
	}

	log.Infof("planning definition: %s", d.Name)
	runPlan := func(ctx context.Context) error {
		return r.tf.Run(ctx, target, types.ActionPlan, tfexec.RunOptions{
			Definition:  d.Name,
			DestroyPlan: r.planFor == types.ActionDestroy,
			PlanFile:    d.PlanFile,
			ShowOutput:  r.showOutput,
		})
	}

	err := r.withHooks(ctx, d, target, types.ActionPlan, runPlan)
	var change *tfexec.PlanChangeError
	if errors.As(err, &change) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("error planning terraform definition %s: %w", d.Name, err)
	}
	return false, nil
}

// runStaged executes apply or destroy bracketed by its hooks.
func (r *runner) runStaged(ctx context.Context, d *definitions.Definition, target string, action types.Action) error {
	planFile := ""
	if action == types.ActionApply {
		planFile = d.PlanFile
	}
	return r.withHooks(ctx, d, target, action, func(ctx context.Context) error {
		return r.tf.Run(ctx, target, action, tfexec.RunOptions{
			Definition: d.Name,
			PlanFile:   planFile,
			ShowOutput: r.showOutput,
		})
	})
}

// withHooks wraps fn with the definition's pre and post hooks. Post hooks
// run only on success; a failing run surfaces its own error instead.
func (r *runner) withHooks(ctx context.Context, d *definitions.Definition, target string, action types.Action, fn func(context.Context) error) error {
	if err := r.runHook(ctx, d, target, types.StagePre, action); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return r.runHook(ctx, d, target, types.StagePost, action)
}

func (r *runner) runHook(ctx context.Context, d *definitions.Definition, target string, stage types.Stage, action types.Action) error {
	found, err := hooks.Check(target, stage, action)
	if err != nil {
		return fmt.Errorf("hook error on definition %s: %w", d.Name, err)
	}
	if !found {
		return nil
	}
	log.Infof("found %s-%s hook script for definition %s, executing", stage, action, d.Name)
	if err := hooks.Exec(ctx, target, stage, action, hooks.Options{
		Env:           authEnv(r.authers),
		TerraformPath: r.tf.Bin(),
		B64Encode:     r.b64Encode,
		Debug:         r.showOutput,
	}); err != nil {
		return fmt.Errorf("hook execution error on definition %s: %w", d.Name, err)
	}
	return nil
}

// terraformFlags returns the terraform command's own flags. Everything that
// is not a per-invocation action switch falls back to the worker_options
// section of the config file.
func terraformFlags() []cli.Flag {
	cfg := ConfigFilePath()
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "apply",
			Usage: "apply the terraform configuration",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_APPLY"),
			),
		},
		&cli.BoolFlag{
			Name:  "destroy",
			Usage: "destroy the deployment instead of creating it",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_DESTROY"),
			),
		},
		&cli.BoolFlag{
			Name:  "force-apply",
			Usage: "apply or destroy without a plan change",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_FORCE_APPLY"),
			),
		},
		workerOptionBoolFlag(cfg, &cli.BoolFlag{
			Name:  "show-output",
			Usage: "show output from terraform commands",
			Value: true,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_SHOW_OUTPUT"),
			),
		}),
		workerOptionBoolFlag(cfg, &cli.BoolFlag{
			Name:  "b64-encode",
			Usage: "base64 encode variables passed to hook scripts",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_B64_ENCODE"),
			),
		}),
		workerOptionBoolFlag(cfg, &cli.BoolFlag{
			Name:  "backend-use-all-remotes",
			Usage: "derive remote state data sources from the backend instead of remote_vars",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_BACKEND_USE_ALL_REMOTES"),
			),
		}),
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "plan-file-path",
			Usage: "save plans to, and apply them from, this directory",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_PLAN_FILE_PATH"),
			),
		}),
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "terraform-bin",
			Usage: "the full path of the terraform binary",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_TERRAFORM_BIN"),
			),
		}),
		workerOptionFlag(cfg, &cli.StringFlag{
			Name:  "working-dir",
			Usage: "keep and reuse this working directory instead of a temporary one",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("TFRUNNER_WORKING_DIR"),
			),
		}),
		limitFlag(),
	}
}

// terraformCommandBuilder constructs the cli.Command for "terraform", the
// deployment build and destroy driver.
func terraformCommandBuilder(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "terraform",
		Usage:     "build or destroy a deployment",
		UsageText: "tfrunner terraform [options] DEPLOYMENT",
		Metadata: map[string]any{
			"meta": m,
		},
		Flags: append(terraformFlags(), NewRootFlags()...),
		Action: terraformCommandAction,
	}
}
