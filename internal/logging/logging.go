package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/natefinch/lumberjack"
	xerrs "golang.org/x/xerrors"
)

// Options configures the process logger.
type Options struct {
	Format string // "json" or "text"
	Level  slog.Level
	File   string // optional rotating log file, written in addition to stderr
}

// Init builds the logger described by opts and installs it as the slog
// default. The returned closer releases the rotating file, if any.
func Init(opts Options) io.Closer {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotating)
		closer = rotating
	}
	slog.SetDefault(New(w, opts.Format, opts.Level))
	return closer
}

// New returns a logger writing to w. Error attributes carry a stack trace
// when the error was created or wrapped by go-xerrors, and frame detail when
// it was wrapped by golang.org/x/xerrors.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		a.Value = errorValue(err)
	}
	return a
}

// errorValue adds a "trace" from go-xerrors stacks and a "detail" with the
// %+v rendering of golang.org/x/xerrors wrap chains, which record the frame
// of every Errorf.
func errorValue(err error) slog.Value {
	attrs := []slog.Attr{slog.String("msg", err.Error())}
	if frames := marshalStack(err); frames != nil {
		attrs = append(attrs, slog.Any("trace", frames))
	}
	var f xerrs.Formatter
	if errors.As(err, &f) {
		attrs = append(attrs, slog.String("detail", fmt.Sprintf("%+v", f)))
	}
	if len(attrs) == 1 {
		return slog.StringValue(err.Error())
	}
	return slog.GroupValue(attrs...)
}

func marshalStack(err error) []stackFrame {
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	out := make([]stackFrame, 0, len(frames))
	for _, f := range frames {
		out = append(out, stackFrame{
			Func:   filepath.Base(f.Function),
			Source: filepath.Join(filepath.Base(filepath.Dir(f.File)), filepath.Base(f.File)),
			Line:   f.Line,
		})
	}
	return out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
