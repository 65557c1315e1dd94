// Package logging holds the level ladder and the console/file handler used by forkres.
package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	LevelTrace   = slog.LevelDebug - 4 // -8
	LevelDebug   = slog.LevelDebug     // -4
	LevelVerbose = slog.LevelDebug + 2 // -2
	LevelInfo    = slog.LevelInfo      // 0
	LevelNotice  = slog.LevelInfo + 2  // 2
	LevelWarn    = slog.LevelWarn      // 4
	LevelError   = slog.LevelError     // 8
	LevelFatal   = slog.LevelError + 4 // 12
)

// levels lists the named levels, most severe first.  Names are lower case; [LevelString] upper
// cases them.
var levels = []struct {
	lvl  slog.Level
	name string
}{
	{LevelFatal, "fatal"},
	{LevelError, "error"},
	{LevelWarn, "warn"},
	{LevelNotice, "notice"},
	{LevelInfo, "info"},
	{LevelVerbose, "verbose"},
	{LevelDebug, "debug"},
	{LevelTrace, "trace"},
}

// levelNames returns the level names from least to most severe, for messages.
func levelNames() string {
	names := make([]string, len(levels))
	for i, l := range levels {
		names[len(levels)-1-i] = l.name
	}
	return strings.Join(names, ", ")
}

// BumpLevel returns lvl bumped to the next higher (more severe) or lower (less severe) named level.
func BumpLevel(lvl slog.Level, lower bool) slog.Level {
	// Take advantage of the symmetry around 0.
	var orient slog.Level = 1
	if lower {
		orient = -1
		lvl *= orient
	}
	var adj slog.Level = 4
	if LevelDebug+2 <= lvl && lvl < LevelWarn+2 {
		adj = 2
	}
	lvl += adj
	lvl *= orient
	return lvl
}

// StringToLevel returns the level with the given name, ignoring case.
func StringToLevel(arg string) (slog.Level, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	for _, l := range levels {
		if l.name == arg {
			return l.lvl, nil
		}
	}
	return 0, fmt.Errorf("invalid log level %q; expected one of: %v", arg, levelNames())
}

// LevelString returns the name of the nearest named level at or below lvl, upper case, with an
// offset suffix if lvl is not exactly a named level (for example "DEBUG+1").
func LevelString(lvl slog.Level) string {
	for _, l := range levels {
		if lvl >= l.lvl {
			name := strings.ToUpper(l.name)
			if lvl == l.lvl {
				return name
			}
			return fmt.Sprintf("%s+%d", name, lvl-l.lvl)
		}
	}
	return fmt.Sprintf("TRACE%d", lvl-LevelTrace)
}
