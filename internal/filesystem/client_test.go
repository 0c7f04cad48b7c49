package filesystem

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCheckConnection(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		wantOK     bool
		wantErrIs  error
	}{
		{"space present", http.StatusOK, `{"children": ["myspace/", "other/"]}`, true, nil},
		{"space absent", http.StatusOK, `{"children": ["other/"]}`, false, nil},
		{"unauthorized", http.StatusUnauthorized, ``, false, ErrUnauthorized},
		{"server error", http.StatusInternalServerError, ``, false, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := &Client{httpClient: srv.Client(), logger: zap.NewNop(), scheme: "http"}
			ok, err := c.CheckConnection(context.Background(), Binding{
				Host:  srv.Listener.Addr().String(),
				Token: "tok",
				Space: "myspace",
			})
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantErrIs != nil {
				require.ErrorIs(t, err, tc.wantErrIs)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCreateOutputFolder_SkippedWhenOutputBucketSet(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := &Client{httpClient: srv.Client(), logger: zap.NewNop(), scheme: "http"}
	err := c.CreateOutputFolder(context.Background(), Binding{
		Host: srv.Listener.Addr().String(), Space: "myspace", OutputBucket: "explicit-bucket",
	}, "echo")
	require.NoError(t, err)
	assert.False(t, called)
}
