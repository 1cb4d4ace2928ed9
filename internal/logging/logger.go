package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"wfemitter/internal/config"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

// New builds a logger from sink configuration.
// Params: cfg console/file sink options.
// Returns: logger, close function for file sinks, or setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var (
		handlers []slog.Handler
		closers  []func()
	)

	if cfg.Console.Enabled {
		handlers = append(handlers, newSinkHandler(os.Stdout, cfg.Console, true))
	}

	if cfg.File.Enabled {
		file, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", cfg.File.Path, err)
		}
		handlers = append(handlers, newSinkHandler(file, cfg.File, false))
		closers = append(closers, func() { _ = file.Close() })
	}

	if len(handlers) == 0 {
		handlers = append(handlers, newSinkHandler(os.Stdout, config.LogSinkConfig{
			Enabled: true,
			Level:   "info",
			Format:  "line",
		}, true))
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = &multiHandler{handlers: handlers}
	}

	closeFn := func() {
		for _, closeSink := range closers {
			closeSink()
		}
	}

	return slog.New(handler), closeFn, nil
}

// newSinkHandler builds one slog handler for a sink.
// Params: dst output writer; sink validated sink config; color enables line coloring.
// Returns: configured handler.
func newSinkHandler(dst io.Writer, sink config.LogSinkConfig, color bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(sink.Level)}

	if sink.Format == "json" {
		return slog.NewJSONHandler(dst, opts)
	}

	if color {
		dst = &colorLineWriter{dst: dst}
	}
	return slog.NewTextHandler(dst, opts)
}

// parseLevel converts a validated level name into a slog level.
// Params: level lower-case level name.
// Returns: slog level, info when unknown.
func parseLevel(level string) slog.Level {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// multiHandler fans one record out to several sink handlers.
// Params: child handlers.
// Returns: combined slog handler.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled reports whether any child handles the level.
// Params: ctx request context; level record level.
// Returns: true when at least one child is enabled.
func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every enabled child.
// Params: ctx request context; record log record.
// Returns: first child error.
func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs maps WithAttrs over all children.
// Params: attrs attributes to attach.
// Returns: new combined handler.
func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	children := make([]slog.Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		children = append(children, h.WithAttrs(attrs))
	}
	return &multiHandler{handlers: children}
}

// WithGroup maps WithGroup over all children.
// Params: name group name.
// Returns: new combined handler.
func (m *multiHandler) WithGroup(name string) slog.Handler {
	children := make([]slog.Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		children = append(children, h.WithGroup(name))
	}
	return &multiHandler{handlers: children}
}

var (
	tokenPattern  = regexp.MustCompile(`=("[^"]*"|\S+)`)
	ipPattern     = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// colorLineWriter colors level and value tokens of one logfmt line.
// Params: dst underlying writer.
// Returns: io.Writer that highlights console lines.
type colorLineWriter struct {
	mu  sync.Mutex
	dst io.Writer
}

// Write colors one line and writes it to the underlying writer. Lines without
// a known level pass through unchanged.
// Params: p one rendered log line, optionally newline-terminated.
// Returns: len(p) and underlying write error.
func (w *colorLineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := string(p)
	newline := strings.HasSuffix(line, "\n")
	if newline {
		line = strings.TrimSuffix(line, "\n")
	}

	base := levelColor(line)
	if base == "" {
		if _, err := w.dst.Write(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	rendered := tokenPattern.ReplaceAllStringFunc(line, func(match string) string {
		value := match[1:]
		color := tokenColor(value)
		if color == "" {
			return match
		}
		return "=" + color + value + ansiReset + base
	})

	var b strings.Builder
	b.WriteString(base)
	b.WriteString(rendered)
	b.WriteString(ansiReset)
	if newline {
		b.WriteByte('\n')
	}

	if _, err := io.WriteString(w.dst, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// levelColor selects the base line color from the level token.
// Params: line rendered logfmt line.
// Returns: ansi color or "" for unknown levels.
func levelColor(line string) string {
	switch {
	case strings.Contains(line, "level=ERROR"):
		return ansiRed
	case strings.Contains(line, "level=WARN"):
		return ansiYellow
	case strings.Contains(line, "level=INFO"):
		return ansiBlue
	case strings.Contains(line, "level=DEBUG"):
		return ansiGray
	}
	return ""
}

// tokenColor selects the highlight color for one value token.
// Params: value raw token after '='.
// Returns: ansi color or "" to keep the base color.
func tokenColor(value string) string {
	switch {
	case strings.HasPrefix(value, `"`):
		return ansiGreen
	case ipPattern.MatchString(value):
		return ansiCyan
	case numberPattern.MatchString(value):
		return ansiYellow
	}
	return ""
}
