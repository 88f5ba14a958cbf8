// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	ddbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	stsv2 "github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/tfrunner/tfrunner/internal/log"
)

// options holds optional overrides for AWS config loading.
type options struct {
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
	profile         string
	region          string
	retryer         func() awsv2.Retryer
}

// Option customizes how AWS config is loaded.
// Default behavior (no options) inherits the shell environment and shared
// config chain (AWS_PROFILE, ~/.aws/config, ~/.aws/credentials, IMDS, etc.).
type Option func(*options)

// LoadConfig loads AWS SDK v2 config. By default it inherits the shell's AWS
// setup (AWS_PROFILE, shared config, env, IMDS). Options can override static
// credentials, profile, region, and retryer without changing callers.
func LoadConfig(ctx context.Context, opts ...Option) (awsv2.Config, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log.Debugf("opts applied: profile=%s, region=%s", o.profile, o.region)

	var loadOpts []func(*config.LoadOptions) error
	if o.accessKeyID != "" && o.secretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				o.accessKeyID, o.secretAccessKey, o.sessionToken,
			),
		))
	}
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.retryer != nil {
		loadOpts = append(loadOpts, config.WithRetryer(o.retryer))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.Debugf("config load err: err=%v", err)
		return awsv2.Config{}, err
	}
	return cfg, nil
}

// NewS3 constructs a v2 S3 client from the provided config. Additional service
// options can be supplied via optFns.
func NewS3(cfg awsv2.Config, optFns ...func(*s3v2.Options)) *s3v2.Client {
	return s3v2.NewFromConfig(cfg, optFns...)
}

// NewDynamoDB constructs a v2 DynamoDB client from the provided config. The
// s3 backend uses it for its lock table.
func NewDynamoDB(cfg awsv2.Config, optFns ...func(*ddbv2.Options)) *ddbv2.Client {
	return ddbv2.NewFromConfig(cfg, optFns...)
}

// NewSTS constructs a v2 STS client from the provided config.
func NewSTS(cfg awsv2.Config, optFns ...func(*stsv2.Options)) *stsv2.Client {
	return stsv2.NewFromConfig(cfg, optFns...)
}

// WithStaticCredentials pins the credentials instead of letting the default
// chain resolve them.
func WithStaticCredentials(id, secret, token string) Option {
	return func(o *options) {
		o.accessKeyID = id
		o.secretAccessKey = secret
		o.sessionToken = token
	}
}

// WithProfile sets the shared config profile. Defaults to AWS_PROFILE/env chain.
func WithProfile(profile string) Option {
	return func(o *options) { o.profile = profile }
}

// WithRegion sets the region override. Defaults to env/profile/metadata chain.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithRetryer injects a custom retryer; if not set, SDK defaults are used.
func WithRetryer(newRetryer func() awsv2.Retryer) Option {
	return func(o *options) { o.retryer = newRetryer }
}
