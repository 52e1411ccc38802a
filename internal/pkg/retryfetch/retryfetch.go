// Package retryfetch issues HTTP requests with exponential backoff on
// rate-limit responses. It is the only retry policy in the system; every raw
// AI-endpoint call goes through it.
package retryfetch

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

// DefaultMaxRetries is the total attempt budget when the caller passes 0.
const DefaultMaxRetries = 3

// sleepFn is swapped out in tests to avoid real backoff delays.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options describes the request to issue.
type Options struct {
	Method string // defaults to GET
	Header http.Header
	Body   []byte
}

// Do issues the request with up to maxRetries total attempts.
//
// A 429 response sleeps 2^attempt seconds plus up to one second of jitter and
// retries while attempts remain. Any other non-2xx status fails immediately
// with an error naming the status. Transport errors are retried except on the
// final attempt. The caller owns the returned response body.
func Do(ctx context.Context, client *http.Client, url string, opts Options, maxRetries int) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var body *bytes.Reader
		if opts.Body != nil {
			body = bytes.NewReader(opts.Body)
		} else {
			body = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, err
		}
		for key, values := range opts.Header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt == maxRetries-1 {
				return nil, lastErr
			}
			if sleepErr := backoff(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("request failed with status %d", resp.StatusCode)
			if attempt == maxRetries-1 {
				return nil, lastErr
			}
			if sleepErr := backoff(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, lastErr
}

func backoff(ctx context.Context, attempt int) error {
	delay := (1 << attempt) * time.Second
	jitter := time.Duration(rand.Int64N(int64(time.Second)))
	return sleepFn(ctx, delay+jitter)
}
