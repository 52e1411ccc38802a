package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesJobAndRecordsResult(t *testing.T) {
	s := New()
	done := make(chan struct{})
	s.Register(Job{
		Name:     "ok-job",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})

	require.NoError(t, s.Run(context.Background(), "ok-job"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	assert.Eventually(t, func() bool {
		item, err := s.Get("ok-job")
		return err == nil && item.Status == StatusFulfill
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunRecordsFailureMessage(t *testing.T) {
	s := New()
	s.Register(Job{
		Name:     "bad-job",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			return errors.New("boom")
		},
	})

	require.NoError(t, s.Run(context.Background(), "bad-job"))
	assert.Eventually(t, func() bool {
		item, err := s.Get("bad-job")
		return err == nil && item.Status == StatusReject && item.Message == "boom"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunUnknownJob(t *testing.T) {
	s := New()
	err := s.Run(context.Background(), "nope")
	require.Error(t, err)
}

func TestListSortedByName(t *testing.T) {
	s := New()
	noop := func(ctx context.Context) error { return nil }
	s.Register(Job{Name: "zz", Interval: time.Hour, Fn: noop})
	s.Register(Job{Name: "aa", Interval: time.Hour, Fn: noop})

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "aa", items[0].Name)
	assert.Equal(t, "zz", items[1].Name)
}
