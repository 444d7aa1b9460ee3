package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var errDuplicate = errors.New("UNIQUE constraint failed: sales.org_id, sales.idempotency_key")

func captureGorm(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestGormLoggerExpectedErrorsLogAtDebug(t *testing.T) {
	logs := captureGorm(t)
	l := NewGormLogger(GormLoggerConfig{
		Level:    gormlogger.Warn,
		Expected: func(err error) bool { return errors.Is(err, errDuplicate) },
	})

	query := func() (string, int64) { return "INSERT INTO sales (id) VALUES (1)", 0 }
	l.Trace(context.Background(), time.Now(), query, errDuplicate)
	l.Trace(context.Background(), time.Now(), query, errors.New("connection reset"))
	l.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "INSERT", entries[1].ContextMap()["operation"])
}

func TestGormLoggerFlagsSlowRowLocks(t *testing.T) {
	logs := captureGorm(t)
	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: time.Millisecond})

	lock := func() (string, int64) { return "SELECT id, stock FROM products WHERE id = 1 FOR UPDATE", 1 }
	l.Trace(context.Background(), time.Now().Add(-time.Second), lock, nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, true, fields["row_lock"])
	assert.Equal(t, "SELECT", fields["operation"])
}

func TestGormLoggerSilent(t *testing.T) {
	logs := captureGorm(t)
	l := NewGormLogger(DefaultGormLoggerConfig()).LogMode(gormlogger.Silent)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	assert.Zero(t, logs.Len())
}
