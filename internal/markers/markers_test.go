package markers

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, s string) Tree {
	t.Helper()
	m, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestParse(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in, want string
	}{
		{"", "true"},
		{"  ", "true"},
		{"true", "true"},
		{"false", "false"},
		{`sys_platform == "linux"`, "sys_platform == 'linux'"},
		{"python_version < '3.9'", "python_version < '3.9'"},
		{"'3.9' > python_version", "python_version < '3.9'"},
		{"'3.9' <= python_version", "python_version >= '3.9'"},
		{"not (python_version < '3.9')", "python_version >= '3.9'"},
		{"not (os_name == 'nt' or sys_platform == 'darwin')",
			"os_name != 'nt' and sys_platform != 'darwin'"},
		{"sys_platform == 'win32' and (python_version < '3.9' or extra == 'test')",
			"(extra == 'test' or python_version < '3.9') and sys_platform == 'win32'"},
		{"sys_platform == 'linux' and sys_platform == 'linux'", "sys_platform == 'linux'"},
		{"'arm' in platform_machine", "'arm' in platform_machine"},
		{"platform_machine not in 'x86_64 aarch64'", "platform_machine not in 'x86_64 aarch64'"},
		{`extra == "it's"`, `extra == "it's"`},
		{`extra == 'say "hi"'`, `extra == 'say "hi"'`},
	} {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got := mustParse(t, tc.in).String()
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
			// The canonical rendering must parse back to itself.
			if again := mustParse(t, got).String(); again != got {
				t.Errorf("round trip: got %q, want %q", again, got)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		"python_version <",
		"python_version ~= '3.9'",
		"bogus_variable == 'x'",
		"python_version == python_full_version",
		"'a' == 'b'",
		"python_version < 3.9",
		"python_version < 'three'",
		"len(sys_platform) > 3",
		"os.name == 'nt'",
		`platform_release == "5.1'\"x"`,
		`sys_platform == 'lin\x75x'`,
		"platform_release == `5.1'\"x`",
	} {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(in)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("got error %v, want a *ParseError", err)
			}
			if pe.Marker != in {
				t.Errorf("got marker %q, want %q", pe.Marker, in)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"python_version":   "3.10",
		"sys_platform":     "linux",
		"platform_machine": "aarch64",
		"os_name":          "posix",
	}
	for _, tc := range []struct {
		marker string
		want   bool
	}{
		{"", true},
		{"sys_platform == 'linux'", true},
		{"sys_platform == 'win32'", false},
		// Version ordering, not lexicographic ordering.
		{"python_version > '3.9'", true},
		{"python_version < '3.9'", false},
		{"python_version == '3.10.0'", true},
		{"'arch' in platform_machine", true},
		{"platform_machine in 'x86_64 aarch64'", true},
		{"platform_machine not in 'x86_64 i686'", true},
		{"os_name == 'nt' or python_version >= '3.10'", true},
		{"os_name == 'nt' and python_version >= '3.10'", false},
	} {
		t.Run(tc.marker, func(t *testing.T) {
			t.Parallel()
			got, err := mustParse(t, tc.marker).Evaluate(env)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluate_UnsetVariable(t *testing.T) {
	t.Parallel()
	_, err := mustParse(t, "implementation_name == 'cpython'").Evaluate(map[string]string{})
	var ue *UnsetVariableError
	if !errors.As(err, &ue) || ue.Var != "implementation_name" {
		t.Errorf("got error %v, want unset implementation_name", err)
	}
}

func TestNot(t *testing.T) {
	t.Parallel()
	m := mustParse(t, "sys_platform == 'linux' and python_version >= '3.9'")
	got := Not(m).String()
	want := "python_version < '3.9' or sys_platform != 'linux'"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := Not(Not(m)).String(); got != m.String() {
		t.Errorf("double negation: got %q, want %q", got, m.String())
	}
	if !Not(True()).IsTrivialFalse() || !Not(False()).IsTrivialTrue() {
		t.Errorf("negating a constant did not produce the opposite constant")
	}
}

func TestSatisfiable(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		marker string
		want   bool
	}{
		{"", true},
		{"false", false},
		{"sys_platform == 'linux'", true},
		{"sys_platform == 'linux' and sys_platform == 'win32'", false},
		{"sys_platform == 'linux' and sys_platform != 'linux'", false},
		{"sys_platform != 'linux' and sys_platform != 'win32'", true},
		{"python_version < '3.9' and python_version >= '3.9'", false},
		{"python_version < '3.9' and python_version >= '3.9.0'", false},
		{"python_version < '3.10' and python_version > '3.8'", true},
		{"python_version < '3.10' and python_version > '3.9'", true},
		{"python_version <= '3.9' and python_version >= '3.9'", true},
		{"python_version < '3.9' and python_version > '3.9'", false},
		{"(sys_platform == 'linux' or sys_platform == 'darwin') and sys_platform != 'linux' and sys_platform != 'darwin'", false},
		{"'arm' in platform_machine and 'arm' not in platform_machine", false},
		{"'arm' in platform_machine and 'x86' in platform_machine", true},
	} {
		t.Run(tc.marker, func(t *testing.T) {
			t.Parallel()
			if got := Satisfiable(mustParse(t, tc.marker)); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDisjoint(t *testing.T) {
	t.Parallel()
	linux := mustParse(t, `sys_platform == "linux"`)
	win := mustParse(t, `sys_platform == "win32"`)
	old := mustParse(t, "python_version < '3.9'")
	if !Disjoint(linux, win) {
		t.Errorf("%v and %v should be disjoint", linux, win)
	}
	if Disjoint(linux, old) {
		t.Errorf("%v and %v should overlap", linux, old)
	}
	if !Disjoint(old, Not(old)) {
		t.Errorf("%v and its negation should be disjoint", old)
	}
	remainder := And(Not(linux), Not(win))
	if !Satisfiable(remainder) {
		t.Errorf("%v should be satisfiable", remainder)
	}
}

func TestAtoms(t *testing.T) {
	t.Parallel()
	got := mustParse(t, "sys_platform == 'linux' or (sys_platform == 'linux' and python_version < '3.9')").Atoms()
	want := []Atom{
		{Var: "python_version", Op: "<", Value: "3.9"},
		{Var: "sys_platform", Op: "==", Value: "linux"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("atoms differ (-want +got):\n%s", diff)
	}
}
