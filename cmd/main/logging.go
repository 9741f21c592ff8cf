package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
)

const colorReset = "\x1b[0m"

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\x1b[31m"
	case level >= slog.LevelWarn:
		return "\x1b[33m"
	case level >= slog.LevelInfo:
		return "\x1b[32m"
	default:
		return "\x1b[36m"
	}
}

// newLogger builds the server logger from the log settings. Every record
// carries the configured prefix. With LogColors set, each line is colored by
// its level.
func newLogger(w io.Writer, cfg *ServerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.LogColors {
		buf := new(bytes.Buffer)
		handler = &colorHandler{
			Handler: slog.NewTextHandler(buf, opts),
			mu:      new(sync.Mutex),
			buf:     buf,
			out:     w,
		}
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if cfg.LogPrefix != "" {
		logger = logger.With(slog.String("prefix", cfg.LogPrefix))
	}
	return logger
}

// colorHandler formats records with a text handler into a shared buffer and
// writes each line to out wrapped in the color of its level.
type colorHandler struct {
	slog.Handler
	mu  *sync.Mutex
	buf *bytes.Buffer
	out io.Writer
}

func (h *colorHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}
	line := bytes.TrimRight(h.buf.Bytes(), "\n")

	color := levelColor(r.Level)
	var out bytes.Buffer
	out.Grow(len(color) + len(line) + len(colorReset) + 1)
	out.WriteString(color)
	out.Write(line)
	out.WriteString(colorReset)
	out.WriteByte('\n')
	_, err := h.out.Write(out.Bytes())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{Handler: h.Handler.WithAttrs(attrs), mu: h.mu, buf: h.buf, out: h.out}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{Handler: h.Handler.WithGroup(name), mu: h.mu, buf: h.buf, out: h.out}
}
