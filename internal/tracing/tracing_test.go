package tracing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequestID(t *testing.T) {
	first := GenerateRequestID()
	second := GenerateRequestID()

	assert.True(t, strings.HasPrefix(first, "req_"))
	assert.NotEqual(t, first, second)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	start := time.Now()

	ctx = WithRequestID(ctx, "req_abc")
	ctx = WithTraceID(ctx, "trace_def")
	ctx = WithStartTime(ctx, start)

	info := GetRequestInfo(ctx)
	assert.Equal(t, "req_abc", info.RequestID)
	assert.Equal(t, "trace_def", info.TraceID)
	assert.Equal(t, start, info.StartTime)
}

func TestContextMissingValues(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.True(t, GetStartTime(ctx).IsZero())
	assert.Equal(t, time.Duration(0), Duration(ctx))
}

func TestDuration(t *testing.T) {
	ctx := WithStartTime(context.Background(), time.Now().Add(-50*time.Millisecond))
	assert.GreaterOrEqual(t, Duration(ctx), 50*time.Millisecond)
}

func TestTracingManagerDisabled(t *testing.T) {
	logger := logrus.New()
	tm := NewTracingManager(DefaultTracingConfig(), logger)

	require.NoError(t, tm.Initialize(context.Background()))
	require.NoError(t, tm.Shutdown(context.Background()))
}

func TestTracingManagerStdoutExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.UseStdout = true
	cfg.SampleRate = 1.0

	tm := NewTracingManager(cfg, logrus.New())
	require.NoError(t, tm.Initialize(context.Background()))
	defer func() {
		require.NoError(t, tm.Shutdown(context.Background()))
	}()

	ctx, span := WithSpanTracing(context.Background(), "test_span")
	defer span.End()

	assert.NotEmpty(t, GetTraceID(ctx))
	assert.Equal(t, GetOtelTraceID(ctx), GetTraceID(ctx))
}
