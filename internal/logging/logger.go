//
//  Copyright © Manetu Inc. All rights reserved.
//

package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//lint:file-ignore U1001 Ignore all unused code, it's external

// Logger wraps a zap.SugaredLogger with the archive's actor/action convention.
// The actor is usually the archive path of the file being decided, or "sys"
// for process-level messages; the action names the step being performed.
type Logger struct {
	module string
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	level  zapcore.Level
	writer io.Writer
}

const (
	actorKey  = "actor"
	actionKey = "action"
	moduleKey = "module"
	defActor  = "sys"
	defAction = "unk"
)

// newLogger creates an untracked logger at info level. Applications should
// call GetLogger() instead so that level updates reach the logger.
func newLogger(module string) *Logger {
	l := &Logger{module: module, level: zapcore.InfoLevel}
	l.build()
	return l
}

func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	if os.Getenv("LOG_FORMATTER") == "text" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// build (re)creates the zap core from the current level and writer
func (l *Logger) build() {
	core := zapcore.NewCore(newEncoder(), zapcore.AddSync(l.Out()), l.level)

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if os.Getenv("LOG_REPORT_CALLER") != "" {
		opts = append(opts, zap.AddCaller())
	}

	l.logger = zap.New(core, opts...)
	l.sugar = l.logger.Sugar()
}

// IsDebugEnabled returns true if debug output would be emitted. Use it to guard
// debug calls whose arguments are expensive to compute.
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= zapcore.DebugLevel
}

// IsTraceEnabled is an alias of IsDebugEnabled; zap has no trace level.
func (l *Logger) IsTraceEnabled() bool {
	return l.IsDebugEnabled()
}

// IsLevelEnabled checks if a level is enabled
func (l *Logger) IsLevelEnabled(level zapcore.Level) bool {
	return l.level <= level
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level = level
	l.build()
}

// Out returns the writer log output is sent to
func (l *Logger) Out() io.Writer {
	if l.writer != nil {
		return l.writer
	}
	return os.Stdout
}

// SetOut redirects log output, mostly for tests
func (l *Logger) SetOut(w io.Writer) {
	l.writer = w
	l.build()
}

func (l *Logger) with(actor, action string) *zap.SugaredLogger {
	return l.sugar.With(
		zap.String(actorKey, actor),
		zap.String(actionKey, action),
		zap.String(moduleKey, l.module),
	)
}

// Fatal logs fatal message
func (l *Logger) Fatal(actor, action string, args ...interface{}) {
	l.with(actor, action).Fatal(args...)
}

// Fatalf logs fatal message
func (l *Logger) Fatalf(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Fatalf(format, args...)
}

// Panic logs panic message
func (l *Logger) Panic(actor, action string, args ...interface{}) {
	l.with(actor, action).Panic(args...)
}

// Panicf logs panic message
func (l *Logger) Panicf(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Panicf(format, args...)
}

// Trace logs at debug level
func (l *Logger) Trace(actor, action string, args ...interface{}) {
	l.with(actor, action).Debug(args...)
}

// Tracef logs at debug level
func (l *Logger) Tracef(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Debugf(format, args...)
}

// Debug log debug message
func (l *Logger) Debug(actor, action string, args ...interface{}) {
	l.with(actor, action).Debug(args...)
}

// Debugf log debug message
func (l *Logger) Debugf(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Debugf(format, args...)
}

// Info logs info message
func (l *Logger) Info(actor, action string, args ...interface{}) {
	l.with(actor, action).Info(args...)
}

// Infof logs info message
func (l *Logger) Infof(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Infof(format, args...)
}

// Warn logs warning message
func (l *Logger) Warn(actor, action string, args ...interface{}) {
	l.with(actor, action).Warn(args...)
}

// Warnf logs warning message
func (l *Logger) Warnf(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Warnf(format, args...)
}

// Error logs error message
func (l *Logger) Error(actor, action string, args ...interface{}) {
	l.with(actor, action).Error(args...)
}

// Errorf logs error message
func (l *Logger) Errorf(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Errorf(format, args...)
}

// Below are functions using default actor and action

// SysPanicf logs panic message with default actor and action
func (l *Logger) SysPanicf(format string, args ...interface{}) {
	l.Panicf(defActor, defAction, format, args...)
}

// SysDebug logs debug message with default actor and action
func (l *Logger) SysDebug(args ...interface{}) {
	l.Debug(defActor, defAction, args...)
}

// SysDebugf logs debug message with default actor and action
func (l *Logger) SysDebugf(format string, args ...interface{}) {
	l.Debugf(defActor, defAction, format, args...)
}

// SysInfo logs info message with default actor and action
func (l *Logger) SysInfo(args ...interface{}) {
	l.Info(defActor, defAction, args...)
}

// SysInfof logs info message with default actor and action
func (l *Logger) SysInfof(format string, args ...interface{}) {
	l.Infof(defActor, defAction, format, args...)
}

// SysWarnf logs warning message with default actor and action
func (l *Logger) SysWarnf(format string, args ...interface{}) {
	l.Warnf(defActor, defAction, format, args...)
}

// SysError logs error message with default actor and action
func (l *Logger) SysError(args ...interface{}) {
	l.Error(defActor, defAction, args...)
}

// SysErrorf logs error message with default actor and action
func (l *Logger) SysErrorf(format string, args ...interface{}) {
	l.Errorf(defActor, defAction, format, args...)
}
