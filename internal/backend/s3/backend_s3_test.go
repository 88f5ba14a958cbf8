// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package s3

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"testing"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	ddbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfrunner/tfrunner/internal/auth"
	"github.com/tfrunner/tfrunner/internal/backend"
)

const emptyState = `{"version":4,"serial":1,"lineage":"x","resources":[]}`

const occupiedState = `{"version":4,"serial":2,"lineage":"x","resources":[{"mode":"managed","type":"aws_vpc","name":"main","instances":[]}]}`

// fakeS3 is an in-memory object store keyed by object key.
type fakeS3 struct {
	objects map[string]string
	deleted []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3v2.GetObjectInput, _ ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error) {
	body, ok := f.objects[awsv2.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	length := int64(len(body))
	return &s3v2.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: &length,
	}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3v2.ListObjectsV2Input, _ ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error) {
	var contents []s3types.Object
	prefix := awsv2.ToString(in.Prefix)
	for key := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			contents = append(contents, s3types.Object{Key: awsv2.String(key)})
		}
	}
	return &s3v2.ListObjectsV2Output{Contents: contents}, nil
}

func (f *fakeS3) ListObjectVersions(_ context.Context, in *s3v2.ListObjectVersionsInput, _ ...func(*s3v2.Options)) (*s3v2.ListObjectVersionsOutput, error) {
	key := awsv2.ToString(in.Prefix)
	if _, ok := f.objects[key]; !ok {
		return &s3v2.ListObjectVersionsOutput{}, nil
	}
	return &s3v2.ListObjectVersionsOutput{
		Versions: []s3types.ObjectVersion{
			{Key: awsv2.String(key), VersionId: awsv2.String("v2")},
			{Key: awsv2.String(key), VersionId: awsv2.String("v1")},
		},
		DeleteMarkers: []s3types.DeleteMarkerEntry{
			{Key: awsv2.String(key), VersionId: awsv2.String("d1")},
		},
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3v2.DeleteObjectInput, _ ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error) {
	key := awsv2.ToString(in.Key)
	f.deleted = append(f.deleted, key+"@"+awsv2.ToString(in.VersionId))
	delete(f.objects, key)
	return &s3v2.DeleteObjectOutput{}, nil
}

// fakeDynamo tracks lock table lifecycle.
type fakeDynamo struct {
	exists       bool
	createCalls  int
	deletedTable string
	deletedItems []string
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *ddbv2.DescribeTableInput, _ ...func(*ddbv2.Options)) (*ddbv2.DescribeTableOutput, error) {
	if !f.exists {
		return nil, &ddbtypes.ResourceNotFoundException{}
	}
	return &ddbv2.DescribeTableOutput{
		Table: &ddbtypes.TableDescription{
			TableName:   in.TableName,
			TableStatus: ddbtypes.TableStatusActive,
		},
	}, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *ddbv2.CreateTableInput, _ ...func(*ddbv2.Options)) (*ddbv2.CreateTableOutput, error) {
	f.createCalls++
	f.exists = true
	return &ddbv2.CreateTableOutput{}, nil
}

func (f *fakeDynamo) DeleteTable(_ context.Context, in *ddbv2.DeleteTableInput, _ ...func(*ddbv2.Options)) (*ddbv2.DeleteTableOutput, error) {
	if !f.exists {
		return nil, &ddbtypes.ResourceNotFoundException{}
	}
	f.exists = false
	f.deletedTable = awsv2.ToString(in.TableName)
	return &ddbv2.DeleteTableOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *ddbv2.DeleteItemInput, _ ...func(*ddbv2.Options)) (*ddbv2.DeleteItemOutput, error) {
	if id, ok := in.Key["LockID"].(*ddbtypes.AttributeValueMemberS); ok {
		f.deletedItems = append(f.deletedItems, id.Value)
	}
	return &ddbv2.DeleteItemOutput{}, nil
}

func testBackend(s3c S3Client, ddb DynamoClient) *BackendS3 {
	return &BackendS3{
		Deployment: "testdeploy",
		Bucket:     "alphabet",
		Prefix:     "terraform/state/testdeploy",
		Region:     "us-east-1",
		s3:         s3c,
		ddb:        ddb,
	}
}

// flatten collapses whitespace runs so assertions survive hclwrite's
// attribute alignment.
func flatten(s string) string {
	return regexp.MustCompile(`[ \t]+`).ReplaceAllString(s, " ")
}

func TestBackendS3_Tag(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "s3", testBackend(nil, nil).Tag())
}

func TestBackendS3_Hcl(t *testing.T) {
	t.Parallel()

	out := flatten(testBackend(nil, nil).Hcl("network"))
	assert.Contains(t, out, `backend "s3" {`)
	assert.Contains(t, out, `region = "us-east-1"`)
	assert.Contains(t, out, `bucket = "alphabet"`)
	assert.Contains(t, out, `key = "terraform/state/testdeploy/network/terraform.tfstate"`)
	assert.Contains(t, out, `dynamodb_table = "terraform-testdeploy"`)
	assert.Contains(t, out, `encrypt = true`)
}

func TestBackendS3_DataHcl(t *testing.T) {
	t.Parallel()

	be := testBackend(nil, nil)
	assert.Empty(t, be.DataHcl(nil))

	out := flatten(be.DataHcl([]string{"network", "compute"}))
	assert.Contains(t, out, `data "terraform_remote_state" "network" {`)
	assert.Contains(t, out, `data "terraform_remote_state" "compute" {`)
	assert.Contains(t, out, `backend = "s3"`)
	assert.Contains(t, out, `key = "terraform/state/testdeploy/network/terraform.tfstate"`)
}

func TestBackendS3_CleanEmptyState(t *testing.T) {
	t.Parallel()

	s3c := &fakeS3{objects: map[string]string{
		"terraform/state/testdeploy/network/terraform.tfstate": emptyState,
	}}
	ddb := &fakeDynamo{exists: true}
	be := testBackend(s3c, ddb)

	require.NoError(t, be.Clean(context.Background(), "testdeploy", nil))

	assert.Empty(t, s3c.objects)
	// Every version and the delete marker go.
	assert.Len(t, s3c.deleted, 3)
	assert.Equal(t, "terraform-testdeploy", ddb.deletedTable)
}

// Occupied state must abort the clean before anything is deleted.
func TestBackendS3_CleanRefusesOccupiedState(t *testing.T) {
	t.Parallel()

	s3c := &fakeS3{objects: map[string]string{
		"terraform/state/testdeploy/network/terraform.tfstate": occupiedState,
	}}
	ddb := &fakeDynamo{exists: true}
	be := testBackend(s3c, ddb)

	err := be.Clean(context.Background(), "testdeploy", nil)
	var berr *backend.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Contains(t, berr.Error(), "not empty")

	// Nothing was removed.
	assert.Len(t, s3c.objects, 1)
	assert.True(t, ddb.exists)
}

func TestBackendS3_CleanLimited(t *testing.T) {
	t.Parallel()

	s3c := &fakeS3{objects: map[string]string{
		"terraform/state/testdeploy/network/terraform.tfstate": emptyState,
		"terraform/state/testdeploy/compute/terraform.tfstate": occupiedState,
	}}
	ddb := &fakeDynamo{exists: true}
	be := testBackend(s3c, ddb)

	require.NoError(t, be.Clean(context.Background(), "testdeploy", []string{"network"}))

	// Only the limited definition is touched, the table survives.
	assert.NotContains(t, s3c.objects, "terraform/state/testdeploy/network/terraform.tfstate")
	assert.Contains(t, s3c.objects, "terraform/state/testdeploy/compute/terraform.tfstate")
	assert.True(t, ddb.exists)
	require.Len(t, ddb.deletedItems, 1)
	assert.Equal(t, "alphabet/terraform/state/testdeploy/network/terraform.tfstate-md5", ddb.deletedItems[0])
}

func TestBackendS3_CleanNothingToDo(t *testing.T) {
	t.Parallel()

	s3c := &fakeS3{objects: map[string]string{}}
	ddb := &fakeDynamo{exists: false}
	be := testBackend(s3c, ddb)

	assert.NoError(t, be.Clean(context.Background(), "testdeploy", nil))
}

func TestBackendS3_Remotes(t *testing.T) {
	t.Parallel()

	s3c := &fakeS3{objects: map[string]string{
		"terraform/state/testdeploy/network/terraform.tfstate": emptyState,
		"terraform/state/testdeploy/compute/terraform.tfstate": emptyState,
		"terraform/state/testdeploy/compute/terraform.tflock":  "{}",
	}}
	be := testBackend(s3c, &fakeDynamo{exists: true})

	names, err := be.Remotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"compute", "network"}, names)
}

func TestNewBackendS3(t *testing.T) {
	t.Parallel()

	authers, err := auth.NewCollection(context.Background(), &auth.RootOptions{
		Deployment:         "testdeploy",
		AWSAccessKeyID:     "AKIAEXAMPLE",
		AWSSecretAccessKey: "secret",
		AWSRegion:          "us-east-1",
		BackendBucket:      "alphabet",
	})
	require.NoError(t, err)

	ddb := &fakeDynamo{}
	be, err := NewBackendS3(context.Background(), authers, "testdeploy",
		WithClients(&fakeS3{objects: map[string]string{}}, ddb))
	require.NoError(t, err)

	assert.Equal(t, "alphabet", be.Bucket)
	// Default prefix renders the deployment name.
	assert.Equal(t, "terraform/state/testdeploy", be.Prefix)
	// Construction ensures the lock table.
	assert.Equal(t, 1, ddb.createCalls)
}

func TestBackendS3_EnsureLockTable(t *testing.T) {
	t.Parallel()

	ddb := &fakeDynamo{exists: false}
	be := testBackend(&fakeS3{objects: map[string]string{}}, ddb)

	require.NoError(t, be.ensureLockTable(context.Background()))
	assert.Equal(t, 1, ddb.createCalls)
	assert.True(t, ddb.exists)

	// Second call finds the table and does not recreate it.
	require.NoError(t, be.ensureLockTable(context.Background()))
	assert.Equal(t, 1, ddb.createCalls)
}
