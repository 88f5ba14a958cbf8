// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() *RootOptions {
	return &RootOptions{
		Deployment:         "testdeploy",
		AWSAccessKeyID:     "AKIAEXAMPLE",
		AWSSecretAccessKey: "secret",
		AWSRegion:          "us-east-1",
		BackendBucket:      "alphabet",
		BackendPrefix:      "terraform/state/testdeploy",
	}
}

func TestNewCollection_Length(t *testing.T) {
	t.Parallel()

	c, err := NewCollection(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, len(all), c.Len())
	assert.Equal(t, []string{"aws", "google", "google-beta"}, c.Tags())
}

// Lookup by the tag of an already-resolved entry must be stable between
// index-based and tag-based access.
func TestCollection_LookupRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewCollection(context.Background(), testOptions())
	require.NoError(t, err)

	a0, err := c.Get(0)
	require.NoError(t, err)

	again, err := c.GetByTag(a0.Tag())
	require.NoError(t, err)
	assert.Equal(t, a0.Tag(), again.Tag())
}

func TestCollection_UnknownTag(t *testing.T) {
	t.Parallel()

	c, err := NewCollection(context.Background(), testOptions())
	require.NoError(t, err)

	known, err := c.GetByTag("aws")
	require.NoError(t, err)
	assert.NotNil(t, known)

	_, err = c.GetByTag("unknown")
	var unknownErr *UnknownAuthenticatorError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "unknown", unknownErr.Tag)
	assert.Contains(t, err.Error(), "unknown is not a known authenticator")
}

func TestCollection_IndexOutOfRange(t *testing.T) {
	t.Parallel()

	c, err := NewCollection(context.Background(), testOptions())
	require.NoError(t, err)

	_, err = c.Get(-1)
	assert.Error(t, err)
	_, err = c.Get(c.Len())
	assert.Error(t, err)
}

// A variant constructor failure aborts the whole build; there are no partial
// registries.
func TestNewCollection_ConstructionFailure(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.GoogleCredsPath = "/nonexistent/creds.json"

	_, err := NewCollection(context.Background(), opts)
	var cerr *ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "google", cerr.Tag)
}

func TestCollection_Each(t *testing.T) {
	t.Parallel()

	c, err := NewCollection(context.Background(), testOptions())
	require.NoError(t, err)

	var seen []string
	err = c.Each(func(a Authenticator) error {
		seen = append(seen, a.Tag())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, c.Tags(), seen)
}
