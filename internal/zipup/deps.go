package zipup

import (
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logging surface the pipeline writes to. Arguments
// after msg are slog-style alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger drops everything.
type NopLogger struct{}

func NewNopLogger() NopLogger { return NopLogger{} }

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Clock supplies the timestamps written to the upload history.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator supplies the random part of operation ids.
type IDGenerator interface {
	New() string
}

// UUIDGenerator returns random (version 4) UUID strings.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
