package forkres

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/rhansen/forkres/internal/command"
	"github.com/rhansen/forkres/internal/markers"
)

// A MarkerEnvironment holds the values of the marker variables for one concrete environment,
// keyed by variable name (for example "python_version" or "sys_platform").
type MarkerEnvironment map[string]string

// ParseMarkerEnvironment builds a [MarkerEnvironment] from "name=value" assignments.
func ParseMarkerEnvironment(assignments []string) (MarkerEnvironment, error) {
	env := MarkerEnvironment{}
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid marker assignment %q; expected name=value", a)
		}
		if !slices.Contains(markers.Variables, name) {
			return nil, fmt.Errorf("unknown marker variable %q; expected one of: %v",
				name, strings.Join(markers.Variables, ", "))
		}
		env[name] = strings.TrimSpace(value)
	}
	return env, nil
}

// String renders the environment as sorted "name=value" pairs.
func (env MarkerEnvironment) String() string {
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(env)) {
		parts = append(parts, k+"="+env[k])
	}
	return strings.Join(parts, " ")
}

// The script prints a single JSON object with the interpreter's marker values.
const markerEnvScript = `
import json, os, platform, sys
def fmt(info):
    v = "{0.major}.{0.minor}.{0.micro}".format(info)
    if info.releaselevel != "final":
        v += info.releaselevel[0] + str(info.serial)
    return v
impl = sys.implementation.name
print(json.dumps({
    "implementation_name": impl,
    "implementation_version": fmt(sys.implementation.version),
    "os_name": os.name,
    "platform_machine": platform.machine(),
    "platform_python_implementation": platform.python_implementation(),
    "platform_release": platform.release(),
    "platform_system": platform.system(),
    "platform_version": platform.version(),
    "python_full_version": platform.python_version(),
    "python_version": ".".join(platform.python_version_tuple()[:2]),
    "sys_platform": sys.platform,
}))
`

// QueryMarkerEnvironment runs the given Python interpreter and returns its marker environment.
func QueryMarkerEnvironment(ctx context.Context, python string) (MarkerEnvironment, error) {
	slog.DebugContext(ctx, "querying interpreter for marker environment", "python", python)
	env, err := command.DecodeJson[MarkerEnvironment](ctx, ".", python, "-c", markerEnvScript)
	if err != nil {
		return nil, fmt.Errorf("failed to query marker environment: %w", err)
	}
	for _, v := range markers.Variables {
		if _, ok := env[v]; !ok && v != "extra" {
			return nil, fmt.Errorf("interpreter %v did not report marker variable %v", python, v)
		}
	}
	return env, nil
}
