// Package logger builds the engine's log/slog logger. Output is JSON by
// default; "text" uses slog's key=value handler and "plain" drops time and
// level for terminal use with the reconcile command.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"postcontest/src/core/domain"
	"postcontest/src/infra/config"
)

// New returns a logger writing to stdout.
func New(cfg config.LogConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger writing to w. Debug level also records the
// source position.
func NewWithWriter(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "plain":
		handler = &plainHandler{level: level, w: w, mu: &sync.Mutex{}}
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel maps a configured level name; unknown names fall back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID tags a logger with the HTTP request ID.
func WithRequestID(log *slog.Logger, requestID string) *slog.Logger {
	return log.With("request_id", requestID)
}

// WithComponent tags a logger with the subsystem emitting it
// (http, repo, reconcile, scheduler).
func WithComponent(log *slog.Logger, component string) *slog.Logger {
	return log.With("component", component)
}

// WithCompetition scopes a logger to one competition, the unit every
// reconciliation and payment operation works on.
func WithCompetition(log *slog.Logger, competitionID int64) *slog.Logger {
	return log.With("competition_id", competitionID)
}

// PartialFailures logs one warning per participant carried by a
// *domain.PartialFailureError and returns how many were logged. Any other
// error logs nothing.
func PartialFailures(log *slog.Logger, err error) int {
	var partial *domain.PartialFailureError
	if log == nil || !errors.As(err, &partial) {
		return 0
	}
	for _, f := range partial.Failures {
		log.Warn("participant skipped",
			"operation", partial.Operation,
			"participant_id", f.ParticipantID,
			"kind", domain.KindOf(f.Err),
			"error", f.Err,
		)
	}
	return len(partial.Failures)
}

// plainHandler writes the message followed by its attributes as key=value
// pairs, without timestamps or levels.
type plainHandler struct {
	level slog.Level
	w     io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
}

func (h *plainHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level
}

func (h *plainHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, b.String())
	return err
}

func (h *plainHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup is a no-op; plain output never nests keys.
func (h *plainHandler) WithGroup(string) slog.Handler {
	return h
}

