// Package logging builds the updater's logger. Records are written to two
// sinks, a console sink (error and above by default) and a log file sink
// (everything from debug up) which tolerates external log rotation. Both
// sinks share the same timestamped line format.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// TimeLayout is the timestamp format used by both sinks
const TimeLayout = "01/02/2006 03:04:05 PM"

// LevelTrace is used for logging executed commands
const LevelTrace = slog.Level(-8)

var levelStrings = map[string]slog.Level{
	"trace": LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel returns slog level for given level name
func ParseLevel(s string) (slog.Level, error) {
	if v, ok := levelStrings[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown log level '%s', must be one of trace, debug, info, warn, error", s)
}

// Options configures sinks of the logger
type Options struct {
	// Console is the writer for the console sink, usually os.Stderr.
	// console sink is disabled if nil
	Console      io.Writer
	ConsoleLevel slog.Leveler

	// FilePath is the path of the rotation tolerant log file.
	// file sink is disabled if empty
	FilePath  string
	FileLevel slog.Leveler
}

// New creates logger with sinks configured in given options. Returned closer
// must be closed at the end of the process to release the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	if opts.Console != nil {
		handlers = append(handlers, NewHandler(opts.Console, levelOrDefault(opts.ConsoleLevel, slog.LevelError)))
	}

	if opts.FilePath != "" {
		wf, err := OpenWatchedFile(opts.FilePath)
		if err != nil {
			return nil, nil, err
		}
		closer = wf
		handlers = append(handlers, NewHandler(wf, levelOrDefault(opts.FileLevel, slog.LevelDebug)))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.DiscardHandler), closer, nil
	case 1:
		return slog.New(handlers[0]), closer, nil
	default:
		return slog.New(&teeHandler{handlers: handlers}), closer, nil
	}
}

// NewHandler returns text handler writing the shared line format
func NewHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) != 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if a.Value.Kind() == slog.KindTime {
			return slog.String(slog.TimeKey, a.Value.Time().Format(TimeLayout))
		}
	case slog.LevelKey:
		if l, ok := a.Value.Any().(slog.Level); ok && l <= LevelTrace {
			return slog.String(slog.LevelKey, "TRACE")
		}
	}
	return a
}

func levelOrDefault(l slog.Leveler, def slog.Level) slog.Leveler {
	if l == nil {
		return def
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// teeHandler passes each record to all handlers which are enabled for
// the record's level
type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: handlers}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: handlers}
}
