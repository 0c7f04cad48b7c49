package eventrouter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grycap/oscard/internal/faas"
)

func TestFunctionNameFromBucket(t *testing.T) {
	name, err := FunctionNameFromBucket("echo-in")
	require.NoError(t, err)
	assert.Equal(t, "echo", name)
}

func TestFunctionNameFromBucket_TooShort(t *testing.T) {
	_, err := FunctionNameFromBucket("ab")
	assert.Error(t, err)
}

type fakeInvoker struct {
	name  string
	body  []byte
	async bool
}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, body []byte, async bool) (*faas.Response, error) {
	f.name, f.body, f.async = name, body, async
	return &faas.Response{StatusCode: 202}, nil
}

func TestDispatch_ExtractsNameAndInvokesAsync(t *testing.T) {
	fake := &fakeInvoker{}
	r := New(fake, zap.NewNop())

	body := []byte(`{"Records":[{"s3":{"bucket":{"name":"echo-in"},"object":{"key":"hello.txt"}}}]}`)
	err := r.Dispatch(context.Background(), body)
	require.NoError(t, err)

	assert.Equal(t, "echo", fake.name)
	assert.True(t, fake.async)
	assert.Equal(t, body, fake.body)
}
