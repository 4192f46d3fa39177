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

var _ gormlogger.Interface = (*GormLogger)(nil)

func query(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		begin     time.Time
		err       error
		wantLevel zapcore.Level
		wantMsg   string
		wantNone  bool
	}{
		{
			name:      "normal query at debug",
			level:     gormlogger.Info,
			begin:     time.Now(),
			wantLevel: zapcore.DebugLevel,
			wantMsg:   "SQL Query",
		},
		{
			name:      "slow query warns",
			level:     gormlogger.Warn,
			begin:     time.Now().Add(-time.Second),
			wantLevel: zapcore.WarnLevel,
			wantMsg:   "SLOW SQL",
		},
		{
			name:      "error logged",
			level:     gormlogger.Error,
			begin:     time.Now(),
			err:       errors.New("duplicate key"),
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "SQL Error",
		},
		{
			name:     "record not found ignored",
			level:    gormlogger.Error,
			begin:    time.Now(),
			err:      gormlogger.ErrRecordNotFound,
			wantNone: true,
		},
		{
			name:     "silent",
			level:    gormlogger.Silent,
			begin:    time.Now(),
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gl := NewGormLogger(zap.New(core), tt.level)

			gl.Trace(context.Background(), tt.begin, query("SELECT 1"), tt.err)

			if tt.wantNone {
				assert.Empty(t, recorded.All())
				return
			}
			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantLevel, logs[0].Level)
			assert.Equal(t, tt.wantMsg, logs[0].Message)
			assert.Equal(t, "ledger.sql", logs[0].LoggerName)
		})
	}
}

func TestGormLogger_SlowThreshold(t *testing.T) {
	t.Run("reports the threshold", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))

		gl.Trace(context.Background(), time.Now().Add(-50*time.Millisecond), query("SELECT 1"), nil)

		require.Len(t, recorded.All(), 1)
		assert.Equal(t, 10*time.Millisecond, recorded.All()[0].ContextMap()["threshold"])
	})

	t.Run("zero disables warnings", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(0))

		gl.Trace(context.Background(), time.Now().Add(-time.Hour), query("SELECT 1"), nil)

		assert.Empty(t, recorded.All())
	})
}

func TestGormLogger_Printf(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Warn)

	gl.Info(context.Background(), "migrated %d tables", 3)
	gl.Warn(context.Background(), "index %s missing", "entries_kind")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	assert.Equal(t, "index entries_kind missing", logs[0].Message)
}

func TestGormLogger_TraceCarriesRunID(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info)
	ctx, _ := WithRunID(context.Background(), zap.NewNop(), "run-7")

	gl.Trace(ctx, time.Now(), query("SELECT 1"), nil)

	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "run-7", fieldMap(recorded.All()[0])["run_id"])
}

func TestGormLogger_LogMode(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Info, WithSlowThreshold(time.Second))
	changed, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Warn, changed.logLevel)
	assert.Equal(t, time.Second, changed.slowThreshold)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"error":   gormlogger.Error,
		"warn":    gormlogger.Warn,
		"info":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"unknown": gormlogger.Warn,
	}
	for level, want := range tests {
		t.Run(level, func(t *testing.T) {
			assert.Equal(t, want, MapGormLogLevel(level))
		})
	}
}
