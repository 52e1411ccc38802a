package retryfetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleepFn
	sleepFn = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	t.Cleanup(func() { sleepFn = orig })
	return &slept
}

func TestDoSucceedsAfterRateLimits(t *testing.T) {
	slept := stubSleep(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := Do(context.Background(), srv.Client(), srv.URL, Options{}, 3)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 3, calls.Load())

	// backoff grows 2^attempt seconds plus up to 1s jitter
	require.Len(t, *slept, 2)
	assert.GreaterOrEqual(t, (*slept)[0], 1*time.Second)
	assert.Less(t, (*slept)[0], 2*time.Second)
	assert.GreaterOrEqual(t, (*slept)[1], 2*time.Second)
	assert.Less(t, (*slept)[1], 3*time.Second)
}

func TestDoFailsAfterExactlyMaxRetries(t *testing.T) {
	stubSleep(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := Do(context.Background(), srv.Client(), srv.URL, Options{}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoNonRateLimitFailureIsImmediate(t *testing.T) {
	stubSleep(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := Do(context.Background(), srv.Client(), srv.URL, Options{}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.EqualValues(t, 1, calls.Load())
}

func TestDoRetriesTransportErrors(t *testing.T) {
	stubSleep(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // force connection refused

	var calls atomic.Int32
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, io.ErrUnexpectedEOF
		}),
	}

	_, err := Do(context.Background(), client, srv.URL, Options{}, 3)
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoSendsMethodHeaderBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := Do(context.Background(), srv.Client(), srv.URL, Options{
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`{"a":1}`),
	}, 0)
	require.NoError(t, err)
	resp.Body.Close()
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
