package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_ContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core))

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithJob(ctx, "wash.sync.order", "Sync_42")
	l.Infof(ctx, "processed %d", 1)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "processed 1", entries[0].Message)
		fields := entries[0].ContextMap()
		assert.Equal(t, "trace-1", fields["trace_id"])
		assert.Equal(t, "wash.sync.order", fields["queue"])
		assert.Equal(t, "Sync_42", fields["job_key"])
	}
	assert.Equal(t, "trace-1", TraceID(ctx))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zap.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zap.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zap.InfoLevel, parseLevel("bogus"))
}
