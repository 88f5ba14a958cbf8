// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	stsv2 "github.com/aws/aws-sdk-go-v2/service/sts"

	awsx "github.com/tfrunner/tfrunner/internal/aws"
	"github.com/tfrunner/tfrunner/internal/log"
)

// AWS supplies AWS credentials for terraform and for the s3 backend. It is
// inert when neither static keys nor a profile are configured; an inert
// authenticator exports nothing and cannot back an s3 state store.
type AWS struct {
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
	region          string
	backendRegion   string
	bucket          string
	prefix          string
	profile         string
	roleARN         string

	cfg        awsv2.Config
	backendCfg awsv2.Config
	active     bool
	accountID  string
}

// newAWS resolves credentials through the SDK chain. Static keys win over a
// shared profile; a role ARN triggers assumption and the assumed credentials
// replace the originals. Both the working region and the backend region get
// a config so state operations can live in a different region than builds.
func newAWS(ctx context.Context, opts *RootOptions) (Authenticator, error) {
	a := &AWS{
		accessKeyID:     opts.AWSAccessKeyID,
		secretAccessKey: opts.AWSSecretAccessKey,
		sessionToken:    opts.AWSSessionToken,
		region:          opts.AWSRegion,
		backendRegion:   opts.BackendRegion,
		bucket:          opts.BackendBucket,
		prefix:          opts.BackendPrefix,
		profile:         opts.AWSProfile,
		roleARN:         opts.AWSRoleARN,
	}
	if a.backendRegion == "" {
		a.backendRegion = a.region
	}

	a.active = (a.accessKeyID != "" && a.secretAccessKey != "") || a.profile != ""
	if !a.active {
		log.Debugf("aws authenticator inert, no keys or profile supplied")
		return a, nil
	}

	var cfgOpts []awsx.Option
	if a.accessKeyID != "" && a.secretAccessKey != "" {
		cfgOpts = append(cfgOpts, awsx.WithStaticCredentials(a.accessKeyID, a.secretAccessKey, a.sessionToken))
	} else {
		cfgOpts = append(cfgOpts, awsx.WithProfile(a.profile))
	}
	if a.region != "" {
		cfgOpts = append(cfgOpts, awsx.WithRegion(a.region))
	}

	cfg, err := awsx.LoadConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if a.roleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(awsx.NewSTS(cfg), a.roleARN)
		cfg.Credentials = awsv2.NewCredentialsCache(provider)
	}

	// Materialize the resolved credentials so Env() and the backend see the
	// same identity terraform will run as.
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve AWS credentials: %w", err)
	}
	a.accessKeyID = creds.AccessKeyID
	a.secretAccessKey = creds.SecretAccessKey
	a.sessionToken = creds.SessionToken
	a.cfg = cfg

	if a.backendRegion == a.region {
		a.backendCfg = cfg
	} else {
		a.backendCfg = cfg.Copy()
		a.backendCfg.Region = a.backendRegion
	}

	return a, nil
}

// Tag implements Authenticator.
func (a *AWS) Tag() string { return TagAWS }

// Env implements Authenticator. Only configured values are exported.
func (a *AWS) Env() map[string]string {
	result := map[string]string{}
	if !a.active {
		return result
	}
	if a.accessKeyID != "" {
		result["AWS_ACCESS_KEY_ID"] = a.accessKeyID
	}
	if a.secretAccessKey != "" {
		result["AWS_SECRET_ACCESS_KEY"] = a.secretAccessKey
	}
	if a.sessionToken != "" {
		result["AWS_SESSION_TOKEN"] = a.sessionToken
	}
	if a.region != "" {
		result["AWS_DEFAULT_REGION"] = a.region
	}
	return result
}

// Active reports whether credentials were configured.
func (a *AWS) Active() bool { return a.active }

// Config returns the working-region AWS config.
func (a *AWS) Config() awsv2.Config { return a.cfg }

// BackendConfig returns the state-store-region AWS config.
func (a *AWS) BackendConfig() awsv2.Config { return a.backendCfg }

// Region returns the working region.
func (a *AWS) Region() string { return a.region }

// BackendRegion returns the region holding the state bucket and lock table.
func (a *AWS) BackendRegion() string { return a.backendRegion }

// Bucket returns the state bucket name.
func (a *AWS) Bucket() string { return a.bucket }

// Prefix returns the state key prefix.
func (a *AWS) Prefix() string { return a.prefix }

// AccountID looks up the caller's AWS account id, caching the result.
func (a *AWS) AccountID(ctx context.Context) (string, error) {
	if !a.active {
		return "", fmt.Errorf("aws authenticator is not active")
	}
	if a.accountID != "" {
		return a.accountID, nil
	}
	out, err := awsx.NewSTS(a.cfg).GetCallerIdentity(ctx, &stsv2.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	a.accountID = awsv2.ToString(out.Account)
	return a.accountID, nil
}
