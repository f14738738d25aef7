package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/agentic-voice/backend/internal/config"
	"github.com/DeafMist/agentic-voice/backend/internal/logger"
)

type stubPruner struct {
	deleted int64
	err     error

	maxAge    time.Duration
	batchSize int
}

func (p *stubPruner) DeleteOlderThan(_ context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	p.maxAge = maxAge
	p.batchSize = batchSize
	return p.deleted, p.err
}

func TestRunOncePassesConfig(t *testing.T) {
	cfg := &config.Retention{MaxAge: 48 * time.Hour, BatchSize: 250}
	p := &stubPruner{deleted: 7}

	require.EqualValues(t, 7, runOnce(context.Background(), logger.Discard(), p, cfg))
	require.Equal(t, 48*time.Hour, p.maxAge)
	require.Equal(t, 250, p.batchSize)
}

func TestRunOnceReportsPartialProgressOnError(t *testing.T) {
	cfg := &config.Retention{MaxAge: time.Hour, BatchSize: 10}
	p := &stubPruner{deleted: 20, err: errors.New("timeout")}

	require.EqualValues(t, 20, runOnce(context.Background(), logger.Discard(), p, cfg))
}

func TestNextDelayCaps(t *testing.T) {
	require.Equal(t, 4*time.Second, nextDelay(2*time.Second, 30*time.Second))
	require.Equal(t, 30*time.Second, nextDelay(20*time.Second, 30*time.Second))
}

func TestConnectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &config.Retention{Common: config.Common{ElasticsearchAddr: "http://127.0.0.1:1", ElasticsearchIndex: "retrievals"}}
	_, err := connect(ctx, logger.Discard(), cfg)
	require.ErrorIs(t, err, context.Canceled)
}
