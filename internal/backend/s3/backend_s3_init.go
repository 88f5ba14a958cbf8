// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	ddbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tfrunner/tfrunner/internal/auth"
	awsx "github.com/tfrunner/tfrunner/internal/aws"
	"github.com/tfrunner/tfrunner/internal/log"
)

// BackendS3Option customizes backend construction.
type BackendS3Option = func(ctx context.Context, be *BackendS3) error

// NewBackendS3 builds the s3 backend from the aws authenticator in the
// collection and ensures the deployment lock table exists.
func NewBackendS3(ctx context.Context, authers *auth.Collection, deployment string, options ...BackendS3Option) (*BackendS3, error) {
	a, err := authers.GetByTag(auth.TagAWS)
	if err != nil {
		return nil, err
	}
	awsAuth, ok := a.(*auth.AWS)
	if !ok {
		return nil, fmt.Errorf("authenticator %s is not an aws authenticator", a.Tag())
	}

	be := &BackendS3{
		Deployment: deployment,
		Bucket:     awsAuth.Bucket(),
		Prefix:     awsAuth.Prefix(),
		Region:     awsAuth.BackendRegion(),
	}
	if be.Prefix == "" {
		be.Prefix = "terraform/state/" + deployment
	}

	for _, opt := range options {
		if err := opt(ctx, be); err != nil {
			return nil, err
		}
	}

	if be.s3 == nil || be.ddb == nil {
		if !awsAuth.Active() {
			return nil, fmt.Errorf("s3 backend requires aws credentials, none were supplied")
		}
		cfg := awsAuth.BackendConfig()
		if be.s3 == nil {
			be.s3 = awsx.NewS3(cfg)
		}
		if be.ddb == nil {
			be.ddb = awsx.NewDynamoDB(cfg)
		}
	}

	if err := be.ensureLockTable(ctx); err != nil {
		return nil, err
	}

	return be, nil
}

// WithClients injects API clients, primarily for tests.
func WithClients(s3c S3Client, ddb DynamoClient) BackendS3Option {
	return func(ctx context.Context, be *BackendS3) error {
		be.s3 = s3c
		be.ddb = ddb
		return nil
	}
}

// WithPrefix overrides the state key prefix.
func WithPrefix(prefix string) BackendS3Option {
	return func(ctx context.Context, be *BackendS3) error {
		if prefix != "" {
			be.Prefix = prefix
		}
		return nil
	}
}

// ensureLockTable creates the terraform-<deployment> DynamoDB table when it
// does not already exist, waiting until it is usable.
func (be *BackendS3) ensureLockTable(ctx context.Context) error {
	name := be.LockTable()

	_, err := be.ddb.DescribeTable(ctx, &ddbv2.DescribeTableInput{
		TableName: awsv2.String(name),
	})
	if err == nil {
		log.Debugf("lock table %s found, continuing", name)
		return nil
	}
	var notFound *ddbtypes.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe lock table %s: %w", name, err)
	}

	log.Infof("lock table %s not found, creating", name)
	_, err = be.ddb.CreateTable(ctx, &ddbv2.CreateTableInput{
		TableName: awsv2.String(name),
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: awsv2.String("LockID"), KeyType: ddbtypes.KeyTypeHash},
		},
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: awsv2.String("LockID"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		ProvisionedThroughput: &ddbtypes.ProvisionedThroughput{
			ReadCapacityUnits:  awsv2.Int64(1),
			WriteCapacityUnits: awsv2.Int64(1),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create lock table %s: %w", name, err)
	}

	waiter := ddbv2.NewTableExistsWaiter(be.ddb)
	if err := waiter.Wait(ctx, &ddbv2.DescribeTableInput{
		TableName: awsv2.String(name),
	}, 5*time.Minute); err != nil {
		return fmt.Errorf("timed out waiting for lock table %s: %w", name, err)
	}
	return nil
}
