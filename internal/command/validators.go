// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"regexp"

	"github.com/tfrunner/tfrunner/internal/backend"
)

// deploymentRe restricts deployment names to characters that are safe in
// bucket prefixes and DynamoDB table names.
var deploymentRe = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

const maxDeploymentLength = 16

// validateDeployment checks the positional deployment argument. The name
// lands in resource identifiers, so it is kept short and unadorned.
func validateDeployment(name string) error {
	if name == "" {
		return fmt.Errorf("deployment name is required")
	}
	if len(name) > maxDeploymentLength {
		return fmt.Errorf("deployment must be less than %d characters", maxDeploymentLength+1)
	}
	if !deploymentRe.MatchString(name) {
		return fmt.Errorf("deployment name %q may only contain letters, digits and hyphens", name)
	}
	return nil
}

// backendTagValidator accepts the concrete backend tags.
func backendTagValidator(value string) error {
	switch value {
	case backend.TagS3, backend.TagGCS:
		return nil
	}
	return fmt.Errorf("unknown backend %q, expected %s or %s", value, backend.TagS3, backend.TagGCS)
}
