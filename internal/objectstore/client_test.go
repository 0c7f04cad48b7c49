package objectstore

import (
	"context"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInputOutputBucketNames(t *testing.T) {
	assert.Equal(t, "echo-in", InputBucket("echo"))
	assert.Equal(t, "echo-out", OutputBucket("echo"))
}

func TestIsBenignBucketError(t *testing.T) {
	cases := []struct {
		code   string
		benign bool
	}{
		{"BucketAlreadyOwnedByYou", true},
		{"BucketAlreadyExists", true},
		{"AccessDenied", false},
		{"NoSuchBucket", false},
	}
	for _, tc := range cases {
		err := &smithy.GenericAPIError{Code: tc.code, Message: "x"}
		assert.Equal(t, tc.benign, isBenignBucketError(err), tc.code)
	}
}

func TestCreateOutputBucket_SkippedWhenOverridden(t *testing.T) {
	c := &Client{logger: zap.NewNop()}
	err := c.CreateOutputBucket(context.Background(), "echo", true)
	require.NoError(t, err)
}
