// Package eventrouter translates an incoming object-store bucket
// notification into the target function name and hands it to the FaaS
// runtime as an asynchronous invocation, carrying the original notification
// body unchanged.
package eventrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/grycap/oscard/internal/faas"
)

// invoker is the subset of Orchestrator eventrouter depends on, letting
// tests substitute a fake without standing up the whole state machine.
type invoker interface {
	Invoke(ctx context.Context, name string, body []byte, async bool) (*faas.Response, error)
}

// Notification is the S3-compatible bucket-event payload the object store
// POSTs to /events.
type Notification struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// FunctionNameFromBucket strips the trailing "-in" suffix (the final three
// characters) from a bucket name to recover the function name it was
// created for.
func FunctionNameFromBucket(bucket string) (string, error) {
	if len(bucket) <= 3 {
		return "", fmt.Errorf("eventrouter: bucket name %q too short to carry a function suffix", bucket)
	}
	return bucket[:len(bucket)-3], nil
}

// Router dispatches bucket notifications to Orchestrator.Invoke.
type Router struct {
	orchestrator invoker
	logger       *zap.Logger
}

func New(orchestrator invoker, logger *zap.Logger) *Router {
	return &Router{orchestrator: orchestrator, logger: logger}
}

// Dispatch parses body as a Notification, extracts the target function name
// from Records[0].s3.bucket.name, and invokes it asynchronously with body
// unchanged as the request.
func (r *Router) Dispatch(ctx context.Context, body []byte) error {
	var notification Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		return fmt.Errorf("eventrouter: decoding notification: %w", err)
	}
	if len(notification.Records) == 0 {
		return fmt.Errorf("eventrouter: notification has no records")
	}

	bucket := notification.Records[0].S3.Bucket.Name
	name, err := FunctionNameFromBucket(bucket)
	if err != nil {
		return err
	}

	resp, err := r.orchestrator.Invoke(ctx, name, body, true)
	if err != nil {
		r.logger.Error("async invoke failed", zap.String("function", name), zap.Error(err))
		return err
	}
	if resp.StatusCode >= 300 {
		r.logger.Info("async invoke dropped by runtime", zap.String("function", name), zap.Int("status", resp.StatusCode))
	}
	return nil
}
