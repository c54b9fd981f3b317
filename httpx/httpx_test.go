package httpx_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/denowallet/portfolio/httpx"
	"github.com/denowallet/portfolio/httpx/httpxmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func respond(code int, body string) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: code,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Request:    req,
		}, nil
	}
}

func TestGetJSON_Headers(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock http client
	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)

	// Assert: default headers are set, explicit ones win.
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, httpx.UserAgent, req.Header.Get("User-Agent"))
			require.Equal(t, "application/json", req.Header.Get("Accept"))
			require.Equal(t, "secret", req.Header.Get("X-Key"))
			return respond(http.StatusOK, `{"a":1}`)(req)
		}).
		Times(1)

	client := httpx.New(time.Second).WithHTTP(httpClient)

	// Act
	var got struct{ A int }
	err := client.GetJSON(t.Context(), "https://example.com/x", &got, "X-Key", "secret")

	// Assert
	require.NoError(t, err)
	require.Equal(t, 1, got.A)
}

func TestGetJSON_StatusError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(respond(http.StatusTooManyRequests, "slow down")).Times(1)

	client := httpx.New(time.Second).WithHTTP(httpClient)

	var got map[string]any
	err := client.GetJSON(t.Context(), "https://api.example.com/v3/ping", &got)

	var se *httpx.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusTooManyRequests, se.Code)
	require.Equal(t, "api.example.com/v3/ping", se.URL)
	require.True(t, httpx.IsRateLimited(err))
}

func TestRetry_Do(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		failures  int
		wantCalls int32
		wantErr   bool
	}{
		{name: "first call succeeds", failures: 0, wantCalls: 1},
		{name: "succeeds on last attempt", failures: 2, wantCalls: 3},
		{name: "all attempts fail", failures: 5, wantCalls: 3, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			r := httpx.Retry{Attempts: 3, Delay: time.Millisecond}
			err := r.Do(t.Context(), func(context.Context) error {
				if int(calls.Add(1)) <= tc.failures {
					return &httpx.StatusError{Code: http.StatusTooManyRequests}
				}
				return nil
			})

			require.Equal(t, tc.wantCalls, calls.Load())
			require.Equal(t, tc.wantErr, err != nil)
		})
	}
}

func TestRetry_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r := httpx.Retry{Attempts: 3, Delay: time.Hour}
	err := r.Do(ctx, func(context.Context) error { return errors.New("boom") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestMinInterval_Do(t *testing.T) {
	t.Parallel()

	m := &httpx.MinInterval{Interval: 30 * time.Millisecond}
	noop := func(context.Context) error { return nil }

	start := time.Now()
	require.NoError(t, m.Do(t.Context(), noop))
	require.NoError(t, m.Do(t.Context(), noop))
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
