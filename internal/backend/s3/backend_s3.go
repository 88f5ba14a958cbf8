// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	ddbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/tfrunner/tfrunner/internal/backend"
	"github.com/tfrunner/tfrunner/internal/log"
	"github.com/tfrunner/tfrunner/internal/state"
)

// S3Client is the slice of the S3 API the backend uses. The SDK client
// satisfies it; tests substitute a fake.
type S3Client interface {
	GetObject(ctx context.Context, params *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3v2.ListObjectsV2Input, optFns ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, params *s3v2.ListObjectVersionsInput, optFns ...func(*s3v2.Options)) (*s3v2.ListObjectVersionsOutput, error)
	DeleteObject(ctx context.Context, params *s3v2.DeleteObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error)
}

// DynamoClient is the slice of the DynamoDB API used for the lock table.
type DynamoClient interface {
	DescribeTable(ctx context.Context, params *ddbv2.DescribeTableInput, optFns ...func(*ddbv2.Options)) (*ddbv2.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *ddbv2.CreateTableInput, optFns ...func(*ddbv2.Options)) (*ddbv2.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *ddbv2.DeleteTableInput, optFns ...func(*ddbv2.Options)) (*ddbv2.DeleteTableOutput, error)
	DeleteItem(ctx context.Context, params *ddbv2.DeleteItemInput, optFns ...func(*ddbv2.Options)) (*ddbv2.DeleteItemOutput, error)
}

// BackendS3 stores terraform state in an S3 bucket and serializes access
// through a per-deployment DynamoDB lock table.
type BackendS3 struct {
	Deployment string
	Bucket     string
	Prefix     string
	Region     string

	s3  S3Client
	ddb DynamoClient
}

// Tag implements backend.Backend.
func (be *BackendS3) Tag() string { return backend.TagS3 }

// LockTable returns the per-deployment DynamoDB table name.
func (be *BackendS3) LockTable() string {
	return "terraform-" + be.Deployment
}

// stateKey returns the object key holding a definition's state.
func (be *BackendS3) stateKey(name string) string {
	return path.Join(be.Prefix, name, "terraform.tfstate")
}

// Hcl implements backend.Backend. It renders the terraform block pointing a
// definition at its slot in the bucket.
func (be *BackendS3) Hcl(name string) string {
	f := hclwrite.NewEmptyFile()
	tf := f.Body().AppendNewBlock("terraform", nil)
	bb := tf.Body().AppendNewBlock("backend", []string{"s3"})
	bb.Body().SetAttributeValue("region", cty.StringVal(be.Region))
	bb.Body().SetAttributeValue("bucket", cty.StringVal(be.Bucket))
	bb.Body().SetAttributeValue("key", cty.StringVal(be.stateKey(name)))
	bb.Body().SetAttributeValue("dynamodb_table", cty.StringVal(be.LockTable()))
	bb.Body().SetAttributeValue("encrypt", cty.True)
	return string(f.Bytes())
}

// DataHcl implements backend.Backend. Remote state data sources are emitted
// for the given tags in order so later definitions can read earlier outputs.
func (be *BackendS3) DataHcl(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	f := hclwrite.NewEmptyFile()
	for i, tag := range tags {
		db := f.Body().AppendNewBlock("data", []string{"terraform_remote_state", tag})
		db.Body().SetAttributeValue("backend", cty.StringVal("s3"))
		db.Body().SetAttributeValue("config", cty.ObjectVal(map[string]cty.Value{
			"region": cty.StringVal(be.Region),
			"bucket": cty.StringVal(be.Bucket),
			"key":    cty.StringVal(be.stateKey(tag)),
		}))
		if i < len(tags)-1 {
			f.Body().AppendNewline()
		}
	}
	return string(f.Bytes())
}

// Clean implements backend.Backend. With limit tags only those definitions'
// state and lock entries are removed and the lock table survives; without a
// limit the whole prefix and the lock table go.
func (be *BackendS3) Clean(ctx context.Context, deployment string, limit []string) error {
	if len(limit) > 0 {
		log.Warnf("limited clean, the %s lock table will not be dropped", be.LockTable())
		for _, item := range limit {
			if err := be.cleanPrefix(ctx, path.Join(be.Prefix, item)); err != nil {
				return err
			}
			if err := be.deleteLockItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}

	if err := be.cleanPrefix(ctx, be.Prefix); err != nil {
		return err
	}
	return be.dropLockTable(ctx)
}

// cleanPrefix validates every state object below prefix is empty, then
// deletes each along with all prior versions. A non-empty state aborts the
// whole clean before anything is removed.
func (be *BackendS3) cleanPrefix(ctx context.Context, prefix string) error {
	keys, err := be.stateObjectKeys(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		log.Debugf("no state objects under %s/%s", be.Bucket, prefix)
		return nil
	}

	// Validation pass first so a partial clean can't strand a deployment.
	for _, key := range keys {
		if err := be.validateEmptyObject(ctx, key); err != nil {
			return err
		}
	}

	for _, key := range keys {
		if err := be.deleteAllVersions(ctx, key); err != nil {
			return err
		}
		log.Infof("state file removed: %s", key)
	}
	return nil
}

// validateEmptyObject fetches a state object and gates deletion on
// backend.ValidateBackendEmpty.
func (be *BackendS3) validateEmptyObject(ctx context.Context, key string) error {
	obj, err := be.s3.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(be.Bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		// An object can vanish between listing and fetching.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			log.Debugf("state object %s no longer exists", key)
			return nil
		}
		return fmt.Errorf("failed to get state object %s: %w", key, err)
	}
	defer obj.Body.Close()

	raw, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("failed to read state object %s: %w", key, err)
	}
	if obj.ContentLength != nil {
		log.Debugf("state object %s: %s", key, humanize.Bytes(uint64(*obj.ContentLength)))
	}

	doc, err := state.Parse(raw, state.DefaultPassphrase)
	if err != nil {
		return &backend.BackendError{
			Message: fmt.Sprintf("state object %s could not be parsed", key),
			Err:     err,
		}
	}

	empty, err := backend.ValidateBackendEmpty(doc)
	if err != nil {
		return err
	}
	if !empty {
		return &backend.BackendError{
			Message: fmt.Sprintf("state at %s is not empty", key),
			Help:    "destroy the deployment before cleaning its state",
		}
	}
	return nil
}

// stateObjectKeys lists terraform.tfstate keys below prefix.
func (be *BackendS3) stateObjectKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3v2.NewListObjectsV2Paginator(be.s3, &s3v2.ListObjectsV2Input{
		Bucket: awsv2.String(be.Bucket),
		Prefix: awsv2.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list state objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := awsv2.ToString(obj.Key)
			if strings.HasSuffix(key, "terraform.tfstate") {
				keys = append(keys, key)
			} else {
				log.Debugf("skipping non-state object %s", key)
			}
		}
	}
	return keys, nil
}

// deleteAllVersions removes an object including every version and delete
// marker, since versioned buckets resurrect plainly-deleted keys.
func (be *BackendS3) deleteAllVersions(ctx context.Context, key string) error {
	paginator := s3v2.NewListObjectVersionsPaginator(be.s3, &s3v2.ListObjectVersionsInput{
		Bucket: awsv2.String(be.Bucket),
		Prefix: awsv2.String(key),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list versions of %s: %w", key, err)
		}
		for _, v := range page.Versions {
			if awsv2.ToString(v.Key) != key {
				continue
			}
			if v.LastModified != nil {
				log.Debugf("removing version %s of %s (%s)",
					awsv2.ToString(v.VersionId), key, humanize.Time(*v.LastModified))
			}
			if err := be.deleteVersion(ctx, key, v.VersionId); err != nil {
				return err
			}
		}
		for _, m := range page.DeleteMarkers {
			if awsv2.ToString(m.Key) != key {
				continue
			}
			if err := be.deleteVersion(ctx, key, m.VersionId); err != nil {
				return err
			}
		}
	}
	return nil
}

func (be *BackendS3) deleteVersion(ctx context.Context, key string, versionID *string) error {
	_, err := be.s3.DeleteObject(ctx, &s3v2.DeleteObjectInput{
		Bucket:    awsv2.String(be.Bucket),
		Key:       awsv2.String(key),
		VersionId: versionID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// dropLockTable removes the deployment lock table. A missing table is fine,
// clean must be safe to repeat.
func (be *BackendS3) dropLockTable(ctx context.Context) error {
	_, err := be.ddb.DeleteTable(ctx, &ddbv2.DeleteTableInput{
		TableName: awsv2.String(be.LockTable()),
	})
	if err != nil {
		var notFound *ddbtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			log.Debugf("lock table %s already gone", be.LockTable())
			return nil
		}
		return fmt.Errorf("failed to delete lock table %s: %w", be.LockTable(), err)
	}
	log.Infof("lock table removed: %s", be.LockTable())
	return nil
}

// deleteLockItem removes a single definition's digest entry from the lock
// table during a limited clean.
func (be *BackendS3) deleteLockItem(ctx context.Context, name string) error {
	lockID := fmt.Sprintf("%s/%s/terraform.tfstate-md5", be.Bucket, be.stateKeyDir(name))
	_, err := be.ddb.DeleteItem(ctx, &ddbv2.DeleteItemInput{
		TableName: awsv2.String(be.LockTable()),
		Key: map[string]ddbtypes.AttributeValue{
			"LockID": &ddbtypes.AttributeValueMemberS{Value: lockID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete lock item %s: %w", lockID, err)
	}
	return nil
}

func (be *BackendS3) stateKeyDir(name string) string {
	return path.Join(be.Prefix, name)
}

// Remotes implements backend.Backend. It reports the definition names that
// currently hold state under the deployment prefix.
func (be *BackendS3) Remotes(ctx context.Context) ([]string, error) {
	keys, err := be.stateObjectKeys(ctx, be.Prefix)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, key := range keys {
		rel := strings.TrimPrefix(key, be.Prefix+"/")
		name := strings.SplitN(rel, "/", 2)[0]
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
