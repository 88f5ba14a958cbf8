// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package backend

// BackendError is raised for structurally invalid state documents and for
// state-store operations that must not proceed. It is fatal for the
// operation requesting it.
type BackendError struct {
	Message string
	Help    string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *BackendError) Unwrap() error { return e.Err }

// HelpText returns operator guidance for the failure.
func (e *BackendError) HelpText() string {
	if e.Help == "" {
		return "No help available"
	}
	return e.Help
}
