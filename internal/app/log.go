package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LogFile is the name of the log file under the configured log directory.
const LogFile = "zipup.log"

// zipupHandler is a slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
//
// Records below minLevel are dropped.
type zipupHandler struct {
	mu       *sync.Mutex
	w        io.Writer
	opID     string
	minLevel slog.Level
	attrs    []slog.Attr
}

func (h *zipupHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *zipupHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	// Parallel blob uploads log from several goroutines.
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.opID, r.Message); err != nil {
		return err
	}
	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})
	_, err := fmt.Fprintln(h.w)
	return err
}

func (h *zipupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &zipupHandler{
		mu:       h.mu,
		w:        h.w,
		opID:     h.opID,
		minLevel: h.minLevel,
		attrs:    append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *zipupHandler) WithGroup(string) slog.Handler { return h }

func newHandler(w io.Writer, opID string, minLevel slog.Level) *zipupHandler {
	return &zipupHandler{mu: &sync.Mutex{}, w: w, opID: opID, minLevel: minLevel}
}

// newLogger creates a structured logger that writes everything to
// logDir/zipup.log. With verbose set, records are mirrored to stderr as well;
// otherwise stdout and stderr are left to the progress display.
// It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir string, opID string, verbose bool) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFile)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	if verbose {
		w = io.MultiWriter(f, os.Stderr)
	}
	return slog.New(newHandler(w, opID, slog.LevelDebug)), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the zipup.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
