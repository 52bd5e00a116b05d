// Package logging wires up the module's structured logging fanout: a
// colorized console handler for interactive CLI use and a JSON handler
// for shipping records to the devtools transport, installed together as
// a single log/slog handler via slog-multi.
package logging

import (
	"context"
	"io"
	"log/slog"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
)

// level coloring follows a color.New(color.FgX) table convention, the
// same shape an interactive debugger uses for register/breakpoint
// highlighting, applied here to log levels instead.
var (
	levelDebug = color.New(color.FgHiBlack)
	levelInfo  = color.New(color.FgCyan)
	levelWarn  = color.New(color.FgYellow, color.Bold)
	levelError = color.New(color.FgRed, color.Bold)
)

func colorForLevel(l slog.Level) *color.Color {
	switch {
	case l < slog.LevelInfo:
		return levelDebug
	case l < slog.LevelWarn:
		return levelInfo
	case l < slog.LevelError:
		return levelWarn
	default:
		return levelError
	}
}

// consoleHandler renders one line per record as "LEVEL msg key=value ...",
// coloring the level from the table above.
type consoleHandler struct {
	w     io.Writer
	attrs []slog.Attr
	group string
}

func newConsoleHandler(w io.Writer) *consoleHandler {
	return &consoleHandler{w: w}
}

func (h *consoleHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	c := colorForLevel(r.Level)
	line := c.Sprintf("%-5s", r.Level.String()) + " " + r.Message
	for _, a := range h.attrs {
		line += " " + a.Key + "=" + a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		line += " " + a.Key + "=" + a.Value.String()
		return true
	})
	_, err := io.WriteString(h.w, line+"\n")
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.group = name
	return &next
}

// New builds the fanout handler: console output on consoleWriter plus
// newline-delimited JSON on jsonWriter, the pattern samber/slog-multi
// exists to express.
func New(consoleWriter, jsonWriter io.Writer) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		newConsoleHandler(consoleWriter),
		slog.NewJSONHandler(jsonWriter, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))
}
