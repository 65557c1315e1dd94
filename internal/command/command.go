package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

type envKeyType struct{}

// EnvKey is a [context.Context.WithValue] key that can be used to override the environment of
// commands that are executed by this package.  The value must have type []string where each entry
// has the form "name=value".
var EnvKey = envKeyType{}

// New constructs a new [exec.Cmd] with the given arguments, leaving its stdout and stderr connected
// to stdout and stderr.
func New(ctx context.Context, wd string, args ...string) *exec.Cmd {
	slog.DebugContext(ctx, "running command", "wd", wd, "args", args)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = wd
	if v := ctx.Value(EnvKey); v != nil {
		cmd.Env = v.([]string)
	}
	slog.DebugContext(ctx, "command environment", "env", cmd.Env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// An Error reports a command that could not be run or exited unsuccessfully.  Stderr holds what
// the command wrote to its standard error, with surrounding whitespace removed.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Output is like [New] followed by [exec.Cmd.Run] except the command's stdout is returned and its
// stderr is captured into the returned error on failure.
func Output(ctx context.Context, wd string, args ...string) ([]byte, error) {
	cmd := New(ctx, wd, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &Error{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	if stderr.Len() > 0 {
		slog.DebugContext(ctx, "command stderr", "args", args, "stderr", stderr.String())
	}
	return stdout.Bytes(), nil
}

// DecodeJson calls [Output] and decodes its output as exactly one JSON value.
func DecodeJson[T any](ctx context.Context, wd string, args ...string) (T, error) {
	var ret T
	out, err := Output(ctx, wd, args...)
	if err != nil {
		return ret, err
	}
	dec := json.NewDecoder(bytes.NewReader(out))
	if err := dec.Decode(&ret); err != nil {
		return ret, fmt.Errorf("failed to decode JSON from command %q: %w", strings.Join(args, " "), err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return ret, fmt.Errorf("command %q: unexpected output after JSON value", strings.Join(args, " "))
	}
	return ret, nil
}
