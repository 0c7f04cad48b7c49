// Package objectstore provisions the input/output buckets a function needs
// against an S3-compatible object store (MinIO in the reference deployment)
// and wires bucket-creation notifications back to the controller's webhook.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// Config holds the connection parameters for the object store endpoint.
type Config struct {
	Endpoint   string
	User       string
	Pass       string
	WebhookARN string // ARN of the queue/webhook notified on ObjectCreated
}

// Client wraps the S3 API against a MinIO-compatible endpoint.
type Client struct {
	s3         *s3.Client
	webhookARN string
	logger     *zap.Logger
}

// New builds a Client pointed at cfg.Endpoint with path-style addressing,
// mirroring the original minio.Minio(secure=False) constructor translated to
// the AWS SDK idiom.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.User, cfg.Pass, "")

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(creds),
		config.WithRegion("us-east-1"),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &Client{s3: client, webhookARN: cfg.WebhookARN, logger: logger}, nil
}

// InputBucket and OutputBucket compute the default bucket names for a
// function.
func InputBucket(name string) string  { return name + "-in" }
func OutputBucket(name string) string { return name + "-out" }

// Binding adapts a Client to the orchestrator's storage-binding interface.
// The object-store binding is mandatory for every function and wires its own
// notifications as part of CreateInput. CreateOutput always creates the
// default output bucket since the caller-override decision (§4.3) is made
// one layer up, before the orchestrator ever reaches for this adapter.
type Binding struct {
	Client *Client
}

func (b Binding) CreateInput(ctx context.Context, name string) error  { return b.Client.CreateInputBucket(ctx, name) }
func (b Binding) CreateOutput(ctx context.Context, name string) error { return b.Client.CreateOutputBucket(ctx, name, false) }
func (b Binding) DeleteInput(ctx context.Context, name string) error  { return b.Client.DeleteInputBucket(ctx, name) }
func (b Binding) DeleteOutput(ctx context.Context, name string) error { return b.Client.DeleteOutputBucket(ctx, name) }

func isBenignBucketError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return true
		}
	}
	return false
}

// CreateInputBucket creates the bucket if it does not already exist and
// installs a queue-configuration notification for s3:ObjectCreated:* events
// targeting the controller webhook. An "already owned" error is benign. When
// no webhook ARN is configured, no notification is installed.
func (c *Client) CreateInputBucket(ctx context.Context, name string) error {
	bucket := InputBucket(name)
	if err := c.createBucket(ctx, bucket); err != nil {
		return err
	}
	return c.wireNotification(ctx, bucket)
}

// CreateOutputBucket creates the output bucket if it does not already exist.
// No notification is wired; output objects are not function triggers. When
// outputOverridden is true (the caller named an explicit
// STORAGE_PATH_OUTPUT_<pid> destination) creation is skipped entirely,
// matching the original controller's create_output_bucket behavior.
func (c *Client) CreateOutputBucket(ctx context.Context, name string, outputOverridden bool) error {
	if outputOverridden {
		c.logger.Info("output bucket overridden by caller, skipping create", zap.String("function", name))
		return nil
	}
	return c.createBucket(ctx, OutputBucket(name))
}

func (c *Client) createBucket(ctx context.Context, bucket string) error {
	_, err := c.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	if isBenignBucketError(err) {
		c.logger.Info("bucket already owned, skipping create", zap.String("bucket", bucket))
		return nil
	}
	c.logger.Error("create bucket failed", zap.String("bucket", bucket), zap.Error(err))
	return fmt.Errorf("objectstore: create bucket %s: %w", bucket, err)
}

func (c *Client) wireNotification(ctx context.Context, bucket string) error {
	if c.webhookARN == "" {
		return nil
	}
	_, err := c.s3.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket: aws.String(bucket),
		NotificationConfiguration: &types.NotificationConfiguration{
			QueueConfigurations: []types.QueueConfiguration{
				{
					QueueArn: aws.String(c.webhookARN),
					Events:   []types.Event{types.EventS3ObjectCreated},
				},
			},
		},
	})
	if err != nil {
		c.logger.Error("wire bucket notification failed", zap.String("bucket", bucket), zap.Error(err))
		return fmt.Errorf("objectstore: wire notification on %s: %w", bucket, err)
	}
	return nil
}

// DeleteInputBucket clears notifications, removes all contained objects,
// then removes the bucket itself. Failures clearing notifications, listing
// or deleting objects are logged and teardown continues; a failure removing
// the bucket itself is logged and returned.
func (c *Client) DeleteInputBucket(ctx context.Context, name string) error {
	bucket := InputBucket(name)
	if _, err := c.s3.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket:                    aws.String(bucket),
		NotificationConfiguration: &types.NotificationConfiguration{},
	}); err != nil {
		c.logger.Info("clear notification failed, continuing teardown", zap.String("bucket", bucket), zap.Error(err))
	}
	return c.emptyAndDeleteBucket(ctx, bucket)
}

// DeleteOutputBucket removes all contained objects then the bucket.
func (c *Client) DeleteOutputBucket(ctx context.Context, name string) error {
	return c.emptyAndDeleteBucket(ctx, OutputBucket(name))
}

func (c *Client) emptyAndDeleteBucket(ctx context.Context, bucket string) error {
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.logger.Info("list objects failed during teardown", zap.String("bucket", bucket), zap.Error(err))
			break
		}
		for _, obj := range page.Contents {
			if _, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key}); err != nil {
				c.logger.Info("delete object failed during teardown",
					zap.String("bucket", bucket), zap.String("key", aws.ToString(obj.Key)), zap.Error(err))
			}
		}
	}

	_, err := c.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		c.logger.Info("delete bucket failed", zap.String("bucket", bucket), zap.Error(err))
		return fmt.Errorf("objectstore: delete bucket %s: %w", bucket, err)
	}
	return nil
}
