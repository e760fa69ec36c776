// Package logger настраивает структурированное логирование на log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"clinic/internal/config"
)

// Setup создаёт логгер по конфигурации, пишет в stdout и делает его логгером по умолчанию
func Setup(cfg config.LogConfig) *slog.Logger {
	l := New(os.Stdout, cfg)
	slog.SetDefault(l)
	return l
}

// New создаёт логгер без побочных эффектов; удобно в тестах
func New(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel регистр не важен; неизвестное значение даёт info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

type ctxKey struct{}

// WithLogger кладёт логгер в контекст
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContextOrDefault логгер из контекста, иначе def, иначе slog.Default()
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
