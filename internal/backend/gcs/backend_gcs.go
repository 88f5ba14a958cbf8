// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/tfrunner/tfrunner/internal/auth"
	"github.com/tfrunner/tfrunner/internal/backend"
	"github.com/tfrunner/tfrunner/internal/log"
	"github.com/tfrunner/tfrunner/internal/state"
)

// BackendGCS stores terraform state in a GCS bucket. GCS does its own
// locking, so unlike s3 there is no lock table to manage.
type BackendGCS struct {
	Deployment string
	Bucket     string
	Prefix     string
	CredsPath  string

	client *storage.Client
}

// BackendGCSOption customizes backend construction.
type BackendGCSOption = func(ctx context.Context, be *BackendGCS) error

// NewBackendGCS builds the gcs backend from the google authenticator in the
// collection. The storage client is created lazily, rendering HCL requires
// no connection.
func NewBackendGCS(ctx context.Context, authers *auth.Collection, deployment string, options ...BackendGCSOption) (*BackendGCS, error) {
	a, err := authers.GetByTag(auth.TagGoogle)
	if err != nil {
		return nil, err
	}
	gAuth, ok := a.(*auth.Google)
	if !ok {
		return nil, fmt.Errorf("authenticator %s is not a google authenticator", a.Tag())
	}

	be := &BackendGCS{
		Deployment: deployment,
		Bucket:     gAuth.Bucket(),
		Prefix:     gAuth.Prefix(),
		CredsPath:  gAuth.CredsPath(),
	}
	if be.Prefix == "" {
		be.Prefix = "terraform/state/" + deployment
	}

	for _, opt := range options {
		if err := opt(ctx, be); err != nil {
			return nil, err
		}
	}

	return be, nil
}

// Tag implements backend.Backend.
func (be *BackendGCS) Tag() string { return backend.TagGCS }

// Hcl implements backend.Backend.
func (be *BackendGCS) Hcl(name string) string {
	f := hclwrite.NewEmptyFile()
	tf := f.Body().AppendNewBlock("terraform", nil)
	bb := tf.Body().AppendNewBlock("backend", []string{"gcs"})
	bb.Body().SetAttributeValue("bucket", cty.StringVal(be.Bucket))
	bb.Body().SetAttributeValue("prefix", cty.StringVal(path.Join(be.Prefix, name)))
	if be.CredsPath != "" {
		bb.Body().SetAttributeValue("credentials", cty.StringVal(be.CredsPath))
	}
	return string(f.Bytes())
}

// DataHcl implements backend.Backend.
func (be *BackendGCS) DataHcl(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	f := hclwrite.NewEmptyFile()
	for i, tag := range tags {
		vals := map[string]cty.Value{
			"bucket": cty.StringVal(be.Bucket),
			"prefix": cty.StringVal(path.Join(be.Prefix, tag)),
		}
		if be.CredsPath != "" {
			vals["credentials"] = cty.StringVal(be.CredsPath)
		}
		db := f.Body().AppendNewBlock("data", []string{"terraform_remote_state", tag})
		db.Body().SetAttributeValue("backend", cty.StringVal("gcs"))
		db.Body().SetAttributeValue("config", cty.ObjectVal(vals))
		if i < len(tags)-1 {
			f.Body().AppendNewline()
		}
	}
	return string(f.Bytes())
}

// Clean implements backend.Backend. Every state object under the prefix (or
// the limit tags' prefixes) must be empty before anything is removed.
func (be *BackendGCS) Clean(ctx context.Context, deployment string, limit []string) error {
	client, err := be.storageClient(ctx)
	if err != nil {
		return err
	}

	prefixes := []string{be.Prefix}
	if len(limit) > 0 {
		prefixes = prefixes[:0]
		for _, item := range limit {
			prefixes = append(prefixes, path.Join(be.Prefix, item))
		}
	}

	for _, prefix := range prefixes {
		names, err := be.objectNames(ctx, client, prefix)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			log.Debugf("no state objects under gs://%s/%s", be.Bucket, prefix)
			continue
		}
		for _, name := range names {
			if err := be.validateEmptyObject(ctx, client, name); err != nil {
				return err
			}
		}
		for _, name := range names {
			if err := client.Bucket(be.Bucket).Object(name).Delete(ctx); err != nil &&
				!errors.Is(err, storage.ErrObjectNotExist) {
				return fmt.Errorf("failed to delete gs://%s/%s: %w", be.Bucket, name, err)
			}
			log.Infof("state file removed: gs://%s/%s", be.Bucket, name)
		}
	}
	return nil
}

// Remotes implements backend.Backend.
func (be *BackendGCS) Remotes(ctx context.Context) ([]string, error) {
	client, err := be.storageClient(ctx)
	if err != nil {
		return nil, err
	}
	names, err := be.objectNames(ctx, client, be.Prefix)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var result []string
	for _, name := range names {
		rel := strings.TrimPrefix(name, be.Prefix+"/")
		def := strings.SplitN(rel, "/", 2)[0]
		if def != "" && !seen[def] {
			seen[def] = true
			result = append(result, def)
		}
	}
	sort.Strings(result)
	return result, nil
}

func (be *BackendGCS) storageClient(ctx context.Context) (*storage.Client, error) {
	if be.client != nil {
		return be.client, nil
	}
	var opts []option.ClientOption
	if be.CredsPath != "" {
		opts = append(opts, option.WithCredentialsFile(be.CredsPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	be.client = client
	return client, nil
}

func (be *BackendGCS) objectNames(ctx context.Context, client *storage.Client, prefix string) ([]string, error) {
	var names []string
	it := client.Bucket(be.Bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", be.Bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, ".tfstate") {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}

func (be *BackendGCS) validateEmptyObject(ctx context.Context, client *storage.Client, name string) error {
	r, err := client.Bucket(be.Bucket).Object(name).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to read gs://%s/%s: %w", be.Bucket, name, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read gs://%s/%s: %w", be.Bucket, name, err)
	}

	doc, err := state.Parse(raw, state.DefaultPassphrase)
	if err != nil {
		return &backend.BackendError{
			Message: fmt.Sprintf("state object %s could not be parsed", name),
			Err:     err,
		}
	}
	empty, err := backend.ValidateBackendEmpty(doc)
	if err != nil {
		return err
	}
	if !empty {
		return &backend.BackendError{
			Message: fmt.Sprintf("state at %s is not empty", name),
			Help:    "destroy the deployment before cleaning its state",
		}
	}
	return nil
}
