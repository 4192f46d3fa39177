package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger routes ledger SQL logs through zap. Statements issued during a
// sync run carry its run_id and, under a span, the trace ids.
type GormLogger struct {
	logger        *zap.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which a statement is reported
// as slow. Zero disables slow statement warnings.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// NewGormLogger creates a GormLogger. Record-not-found errors are never
// logged; finders return them on every cache miss.
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:        zapLogger.Named("ledger.sql"),
		logLevel:      level,
		slowThreshold: defaultSlowQuery,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []any) {
	if l.logLevel < min {
		return
	}
	l.contextual(ctx).Sugar().Logf(level, msg, data...)
}

// Trace implements gormlogger.Interface. Failed statements log at error,
// slow ones at warn, everything else at debug.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	var level zapcore.Level
	var msg string
	switch {
	case err != nil && l.logLevel >= gormlogger.Error:
		level, msg = zapcore.ErrorLevel, "SQL Error"
	case slow && l.logLevel >= gormlogger.Warn:
		level, msg = zapcore.WarnLevel, "SLOW SQL"
	case l.logLevel >= gormlogger.Info:
		level, msg = zapcore.DebugLevel, "SQL Query"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	if slow {
		fields = append(fields, zap.Duration("threshold", l.slowThreshold))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.contextual(ctx).Log(level, msg, fields...)
}

// contextual adds the run and trace ids found on ctx
func (l *GormLogger) contextual(ctx context.Context) *zap.Logger {
	log := l.logger
	if runID := GetRunID(ctx); runID != "" {
		log = log.With(zap.String("run_id", runID))
	}
	return WithTraceContext(ctx, log)
}

// MapGormLogLevel maps the application log level onto GORM's. Debug
// logging shows every statement; the default only reports slow ones.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
