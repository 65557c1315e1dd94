package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amterp/color"
)

var levelColors = []struct {
	lvl slog.Level
	c   *color.Color
}{
	{LevelError, color.New(color.FgRed, color.Bold)},
	{LevelWarn, color.New(color.FgYellow)},
	{LevelInfo, color.New(color.FgGreen)},
	{LevelDebug, color.New(color.FgBlue)},
	{LevelTrace, color.New(color.FgMagenta)},
}

func colorize(lvl slog.Level, s string) string {
	for _, lc := range levelColors {
		if lvl >= lc.lvl {
			return lc.c.Sprint(s)
		}
	}
	return levelColors[len(levelColors)-1].c.Sprint(s)
}

// HandlerOptions configures a [Handler].
type HandlerOptions struct {
	// Level is the minimum level to log.  Nil means [LevelInfo].
	Level slog.Leveler
	// Color colorizes the level name.  Colors are still suppressed if [color.NoColor] is set.
	Color bool
	// Uptime prefixes each record with the time elapsed since the handler was created.
	Uptime bool
	// Spans prefixes each message with the names of the enclosing groups, each followed by a colon.
	// Attributes are always qualified by their group names.
	Spans bool
}

// A Handler is a [slog.Handler] that writes one human-oriented line per record:
//
//	[UPTIME] LEVEL [SPAN:...] message key=value ...
type Handler struct {
	mu     *sync.Mutex
	w      io.Writer
	opts   HandlerOptions
	start  time.Time
	groups []string
	attrs  []byte
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler returns a handler that writes to w.
func NewHandler(w io.Writer, opts *HandlerOptions) *Handler {
	h := &Handler{mu: &sync.Mutex{}, w: w, start: time.Now()}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = LevelInfo
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	if h.opts.Uptime {
		fmt.Fprintf(&buf, "%8.3fs ", r.Time.Sub(h.start).Seconds())
	}
	lvl := fmt.Sprintf("%-7s", LevelString(r.Level))
	if h.opts.Color {
		lvl = colorize(r.Level, lvl)
	}
	buf.WriteString(lvl)
	buf.WriteByte(' ')
	if h.opts.Spans {
		for _, g := range h.groups {
			buf.WriteString(g)
			buf.WriteString(": ")
		}
	}
	buf.WriteString(r.Message)
	buf.Write(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.groups, a)
		return true
	})
	buf.WriteByte('\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	buf := bytes.NewBuffer(slices.Clip(h.attrs))
	for _, a := range attrs {
		appendAttr(buf, h.groups, a)
	}
	h2.attrs = buf.Bytes()
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(slices.Clip(h.groups), name)
	return &h2
}

func appendAttr(buf *bytes.Buffer, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			groups = append(slices.Clip(groups), a.Key)
		}
		for _, ga := range a.Value.Group() {
			appendAttr(buf, groups, ga)
		}
		return
	}
	buf.WriteByte(' ')
	for _, g := range groups {
		buf.WriteString(g)
		buf.WriteByte('.')
	}
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		v = strconv.Quote(v)
	}
	buf.WriteString(v)
}

// A Preset is a named console verbosity.
type Preset int

const (
	// PresetDefault logs at [LevelInfo] and above.
	PresetDefault Preset = iota
	// PresetVerbose logs at [LevelDebug] and above.
	PresetVerbose
	// PresetExtraVerbose is like [PresetVerbose] but also shows uptime and spans.
	PresetExtraVerbose
)

// Options returns the handler options for the preset.
func (p Preset) Options(useColor bool) *HandlerOptions {
	switch p {
	case PresetDefault:
		return &HandlerOptions{Level: LevelInfo, Color: useColor}
	case PresetVerbose:
		return &HandlerOptions{Level: LevelDebug, Color: useColor}
	case PresetExtraVerbose:
		return &HandlerOptions{Level: LevelDebug, Color: useColor, Uptime: true, Spans: true}
	default:
		panic(fmt.Errorf("unknown preset %d", p))
	}
}

// FileLevels maps the accepted log file levels to handler options.  Log files are never colorized.
var FileLevels = map[string]HandlerOptions{
	"verbose":             {Level: LevelDebug},
	"extra-verbose":       {Level: LevelDebug, Uptime: true, Spans: true},
	"trace":               {Level: LevelTrace},
	"trace-extra-verbose": {Level: LevelTrace, Uptime: true, Spans: true},
}

// CreateLogFile creates (or truncates) a log file.  The path's extension is replaced with ".log".
// The returned path is the one actually used.
func CreateLogFile(path string) (*os.File, string, error) {
	path = strings.TrimSuffix(path, filepath.Ext(path)) + ".log"
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return nil, "", fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create log file: %w", err)
	}
	return f, path, nil
}

// EnvVar names the environment variable that overrides the console log level.
const EnvVar = "FORKRES_LOG"

// LevelFromEnv returns the level named by [EnvVar], if set.
func LevelFromEnv() (slog.Level, bool, error) {
	s, ok := os.LookupEnv(EnvVar)
	if !ok || s == "" {
		return 0, false, nil
	}
	lvl, err := StringToLevel(s)
	if err != nil {
		return 0, false, fmt.Errorf("%v: %w", EnvVar, err)
	}
	return lvl, true, nil
}
