package logging

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// BadgerLogger adapts a zerolog logger to badger's Logger interface.
// Badger is chatty at info level, so its info messages are demoted to debug.
type BadgerLogger struct {
	logger zerolog.Logger
}

func NewBadgerLogger(logger zerolog.Logger) *BadgerLogger {
	return &BadgerLogger{logger: logger}
}

func (b *BadgerLogger) Errorf(format string, args ...interface{}) {
	b.emit(zerolog.ErrorLevel, format, args...)
}

func (b *BadgerLogger) Warningf(format string, args ...interface{}) {
	b.emit(zerolog.WarnLevel, format, args...)
}

func (b *BadgerLogger) Infof(format string, args ...interface{}) {
	b.emit(zerolog.DebugLevel, format, args...)
}

func (b *BadgerLogger) Debugf(format string, args ...interface{}) {
	b.emit(zerolog.TraceLevel, format, args...)
}

func (b *BadgerLogger) emit(level zerolog.Level, format string, args ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	b.logger.WithLevel(level).Msg(msg)
}
