package yachu

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/sicilica/slogging"
)

type loggerKeyType int

var loggerKey loggerKeyType

func Logger(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(loggerKey).(*slog.Logger)
	if ok {
		return l
	}
	return slog.Default()
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// NewLogger builds the process logger. format is "pretty" or "json".
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		h = &levelHandler{
			level:   level,
			Handler: slogging.NewPrettyHandler(w, nil),
		}
	}
	return slog.New(h)
}

// levelHandler puts a minimum level in front of a handler that has no
// level option of its own.
type levelHandler struct {
	level slog.Level
	slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, Handler: h.Handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, Handler: h.Handler.WithGroup(name)}
}

func errAttr(err error) slog.Attr {
	return slog.String("error", err.Error())
}
