package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amterp/color"
	"github.com/google/go-cmp/cmp"
	"github.com/rhansen/forkres"
	"github.com/rhansen/forkres/internal/logging"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const testSnapshot = `
indexes:
  - url: https://a.example
    packages:
      foo:
        - version: "1.0"
          requires: [bar]
      bar:
        - version: "2.0"
  - url: https://b.example
    packages:
      foo:
        - version: "1.0"
`

const testProject = `
indexes:
  - https://a.example
requirements:
  - requirement: "foo==1.0; sys_platform == 'linux'"
    index: https://a.example
  - requirement: "foo==1.0; sys_platform == 'win32'"
    index: https://b.example
`

func writeFiles(t *testing.T) (project, snapshot string) {
	t.Helper()
	dir := t.TempDir()
	project = filepath.Join(dir, "project.yaml")
	snapshot = filepath.Join(dir, "snapshot.yaml")
	if err := os.WriteFile(project, []byte(testProject), 0o666); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(snapshot, []byte(testSnapshot), 0o666); err != nil {
		t.Fatal(err)
	}
	return project, snapshot
}

func TestRun(t *testing.T) {
	t.Parallel()
	project, snapshot := writeFiles(t)
	for _, tc := range []struct {
		desc    string
		cfg     config
		want    string
		wantErr string
	}{
		{
			desc: "tree",
			cfg:  config{mode: forkres.ModeFork, output: outputTree},
			want: "" +
				"fork: sys_platform != 'linux' and sys_platform != 'win32'\n" +
				"fork: sys_platform == 'linux'\n" +
				"  foo==1.0 (https://a.example)\n" +
				"    bar==2.0 (https://a.example)\n" +
				"fork: sys_platform == 'win32'\n" +
				"  foo==1.0 (https://b.example)\n",
		},
		{
			desc: "raw",
			cfg:  config{mode: forkres.ModeFork, output: outputRaw},
			want: "" +
				"fork: sys_platform != 'linux' and sys_platform != 'win32'\n" +
				"fork: sys_platform == 'linux'\n" +
				"bar==2.0 (https://a.example)\n" +
				"foo==1.0 (https://a.example)\n" +
				"fork: sys_platform == 'win32'\n" +
				"foo==1.0 (https://b.example)\n",
		},
		{
			desc:    "universal conflict",
			cfg:     config{mode: forkres.ModeUniversal, output: outputRaw},
			wantErr: "requirements contain conflicting indexes for package `foo`:\n- https://a.example\n- https://b.example",
		},
		{
			desc: "env",
			cfg: config{
				mode:   forkres.ModeSpecificEnvironment,
				envs:   []string{"sys_platform=win32"},
				output: outputRaw,
			},
			want: "fork: environment sys_platform=win32\nfoo==1.0 (https://b.example)\n",
		},
		{
			desc:    "env without environment",
			cfg:     config{mode: forkres.ModeSpecificEnvironment, output: outputRaw},
			wantErr: "mode env requires -env or -python",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			cfg := tc.cfg
			cfg.project, cfg.snapshot = project, snapshot
			var sb strings.Builder
			err := run(t.Context(), &cfg, &sb)
			if tc.wantErr != "" {
				if err == nil || err.Error() != tc.wantErr {
					t.Errorf("got error %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, sb.String()); diff != "" {
				t.Errorf("unexpected output (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_Lock(t *testing.T) {
	t.Parallel()
	project, snapshot := writeFiles(t)
	cfg := config{project: project, snapshot: snapshot, mode: forkres.ModeFork, output: outputLock}
	var sb strings.Builder
	if err := run(t.Context(), &cfg, &sb); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"version: 1\n", "content-hash: ", "name: bar", "index: https://b.example"} {
		if !strings.Contains(sb.String(), s) {
			t.Errorf("lock does not contain %q:\n%s", s, sb.String())
		}
	}
}

func TestRun_MissingSnapshot(t *testing.T) {
	t.Parallel()
	project, _ := writeFiles(t)
	cfg := config{project: project, mode: forkres.ModeFork, output: outputRaw}
	if err := run(t.Context(), &cfg, &strings.Builder{}); err == nil {
		t.Error("got nil error")
	}
}

func TestConsolePreset(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		lvl  slog.Level
		want logging.Preset
	}{
		{logging.LevelInfo, logging.PresetDefault},
		{logging.LevelVerbose, logging.PresetDefault},
		{logging.LevelDebug, logging.PresetVerbose},
		{logging.LevelTrace, logging.PresetExtraVerbose},
		{logging.LevelTrace - 4, logging.PresetExtraVerbose},
	} {
		if got := consolePreset(tc.lvl); got != tc.want {
			t.Errorf("consolePreset(%v) = %v, want %v", tc.lvl, got, tc.want)
		}
	}
}
