// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package types

import "fmt"

// JSONType is a recursive JSON value: string, int, float64, bool, nil,
// map[string]any or []any. Terraform state and config fragments are passed
// around as this type.
type JSONType = any

// Action is one of the terraform operations the runner drives.
type Action int

const (
	ActionInit Action = iota
	ActionPlan
	ActionApply
	ActionDestroy
)

// Actions lists every action in a stable order.
var Actions = []Action{ActionInit, ActionPlan, ActionApply, ActionDestroy}

func (a Action) String() string {
	switch a {
	case ActionInit:
		return "init"
	case ActionPlan:
		return "plan"
	case ActionApply:
		return "apply"
	case ActionDestroy:
		return "destroy"
	}
	return "unknown"
}

// ParseAction maps the lowercase label back to an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown terraform action: %s", s)
}

// Stage brackets an action. Hooks run at both stages.
type Stage int

const (
	StagePre Stage = iota
	StagePost
)

// Stages lists every stage in execution order.
var Stages = []Stage{StagePre, StagePost}

func (s Stage) String() string {
	switch s {
	case StagePre:
		return "pre"
	case StagePost:
		return "post"
	}
	return "unknown"
}

// ParseStage maps the lowercase label back to a Stage.
func ParseStage(v string) (Stage, error) {
	for _, s := range Stages {
		if s.String() == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown terraform stage: %s", v)
}

// HookVarType namespaces the environment variables exported to hook scripts.
type HookVarType int

const (
	HookVarVar HookVarType = iota
	HookVarRemote
	HookVarExtra
)

func (h HookVarType) String() string {
	switch h {
	case HookVarVar:
		return "TF_VAR"
	case HookVarRemote:
		return "TF_REMOTE"
	case HookVarExtra:
		return "TF_EXTRA"
	}
	return "unknown"
}
