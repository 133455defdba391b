package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	previous := log
	log = zap.New(core)
	t.Cleanup(func() { log = previous })
	return logs
}

func TestWithFields(t *testing.T) {
	logs := observe(t)

	ctx := WithFields(context.Background(), zap.String("shard", "shard-1"))
	ctx = WithFields(ctx, zap.String("event", "0xabc:2"))
	InfoCtx(ctx, "Applied event", zap.String("outcome", "applied"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "shard-1", fields["shard"])
	assert.Equal(t, "0xabc:2", fields["event"])
	assert.Equal(t, "applied", fields["outcome"])
}

func TestWithFields_DoesNotLeakToParent(t *testing.T) {
	logs := observe(t)

	parent := WithFields(context.Background(), zap.String("shard", "shard-0"))
	_ = WithFields(parent, zap.String("event", "0xabc:2"))
	WarnCtx(parent, "Fetch timed out")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "shard-0", fields["shard"])
	assert.NotContains(t, fields, "event")
	assert.Same(t, parent, WithFields(parent))
}

func TestAnomaly(t *testing.T) {
	logs := observe(t)

	ctx := WithFields(context.Background(), zap.String("shard", "replay"))
	Anomaly(ctx, "unknown_asset", "Skipped event", zap.String("detail", "asset 9 does not exist"))

	entries := logs.FilterMessage("Skipped event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "unknown_asset", fields["anomaly"])
	assert.Equal(t, "replay", fields["shard"])
	assert.Equal(t, "asset 9 does not exist", fields["detail"])
}

func TestErrorWithoutContext(t *testing.T) {
	logs := observe(t)

	Error(nil, zap.String("component", "lease"))
	ErrorCtx(nil, assert.AnError) //nolint:staticcheck

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "error occurred", entries[0].Message)
	assert.Equal(t, assert.AnError.Error(), entries[1].Message)
}
