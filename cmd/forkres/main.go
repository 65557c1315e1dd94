package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"os"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/amterp/color"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rhansen/forkres"
	"github.com/rhansen/forkres/internal/itertools"
	"github.com/rhansen/forkres/internal/logging"
)

var (
	cyanf    = color.New(color.FgCyan).SprintfFunc()
	hiblackf = color.New(color.FgHiBlack).SprintfFunc()
	boldf    = color.New(color.Bold).SprintfFunc()
	redf     = color.New(color.FgRed, color.Bold).SprintfFunc()
)

type outputFn = func(w io.Writer, p *forkres.Project, res []*forkres.Resolution) error

type config struct {
	project     string
	snapshot    string
	mode        forkres.Mode
	envs        []string
	python      string
	concurrency int
	output      outputFn
	logFile     string
	logFileOpts logging.HandlerOptions
}

func ver() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "(devel)" {
		return ""
	}
	return bi.Main.Version
}

var allOutput = map[string]outputFn{
	"tree": outputTree,
	"raw":  outputRaw,
	"lock": outputLock,
}

var allModes = map[string]forkres.Mode{
	forkres.ModeUniversal.String():           forkres.ModeUniversal,
	forkres.ModeSpecificEnvironment.String(): forkres.ModeSpecificEnvironment,
	forkres.ModeFork.String():                forkres.ModeFork,
}

func forkHeader(w io.Writer, r *forkres.Resolution) {
	fmt.Fprintf(w, "%s\n", boldf("fork: %v", r.Markers))
}

func outputTree(w io.Writer, _ *forkres.Project, res []*forkres.Resolution) error {
	seenMsg := hiblackf(" (repeat)")
	for _, r := range res {
		forkHeader(w, r)
		seen := mapset.NewThreadUnsafeSet[forkres.PackageName]()
		var visit func(c forkres.Candidate, indent int)
		visit = func(c forkres.Candidate, indent int) {
			fmt.Fprint(w, strings.Repeat("  ", indent+1))
			if !seen.Add(c.Name) {
				fmt.Fprintf(w, "%s%s\n", hiblackf("%v", c), seenMsg)
				return
			}
			fmt.Fprintf(w, "%v %s\n", c, cyanf("(%v)", c.Index))
			for d := range r.DepsOf(c.Name) {
				visit(d, indent+1)
			}
		}
		for c := range r.RootCandidates() {
			visit(c, 0)
		}
	}
	return nil
}

func outputRaw(w io.Writer, _ *forkres.Project, res []*forkres.Resolution) error {
	for _, r := range res {
		forkHeader(w, r)
		lines := itertools.Map(slices.Values(r.Packages), func(c forkres.Candidate) string {
			return fmt.Sprintf("%v (%v)", c, c.Index)
		})
		for l := range lines {
			fmt.Fprintf(w, "%s\n", l)
		}
	}
	return nil
}

func outputLock(w io.Writer, p *forkres.Project, res []*forkres.Resolution) error {
	return forkres.NewLock(p.Requirements, res).Write(w)
}

func readYaml[T any](path string, load func(io.Reader) (T, error)) (_ T, retErr error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer func() {
		if err := f.Close(); retErr == nil {
			retErr = err
		}
	}()
	v, err := load(f)
	if err != nil {
		return v, fmt.Errorf("%v: %w", path, err)
	}
	return v, nil
}

func environment(ctx context.Context, cfg *config) (forkres.MarkerEnvironment, error) {
	switch {
	case len(cfg.envs) > 0 && cfg.python != "":
		return nil, fmt.Errorf("-env and -python are mutually exclusive")
	case len(cfg.envs) > 0:
		return forkres.ParseMarkerEnvironment(cfg.envs)
	case cfg.python != "":
		return forkres.QueryMarkerEnvironment(ctx, cfg.python)
	default:
		return nil, fmt.Errorf("mode %v requires -env or -python", cfg.mode)
	}
}

// run resolves the project and writes the successful resolutions to w.  The returned error
// describes the failed forks, if any.
func run(ctx context.Context, cfg *config, w io.Writer) error {
	p, err := readYaml(cfg.project, forkres.LoadProject)
	if err != nil {
		return err
	}
	if cfg.snapshot == "" {
		return fmt.Errorf("no index snapshot given; use -snapshot")
	}
	snap, err := readYaml(cfg.snapshot, forkres.LoadIndexSnapshot)
	if err != nil {
		return err
	}
	opts := forkres.Options{
		Registry:    snap,
		Indexes:     p.Indexes,
		Mode:        cfg.mode,
		Concurrency: cfg.concurrency,
	}
	if cfg.mode == forkres.ModeSpecificEnvironment {
		if opts.Environment, err = environment(ctx, cfg); err != nil {
			return err
		}
		slog.DebugContext(ctx, "target environment", "env", opts.Environment)
	}
	res, resErr := forkres.Resolve(ctx, p.Requirements, opts)
	slog.DebugContext(ctx, "resolved", "forks", len(res), "failed", resErr != nil)
	if err := cfg.output(w, p, res); err != nil {
		return err
	}
	return resErr
}

var slogLevel = func() *slog.LevelVar {
	lvl := &slog.LevelVar{}
	lvl.Set(logging.LevelInfo)
	h := logging.NewHandler(os.Stderr, &logging.HandlerOptions{Level: lvl, Color: true})
	slog.SetDefault(slog.New(h))
	return lvl
}()

func choiceFlag[T any](p *T, name string, choices map[string]T, dflt string, post func(string) error, usage string) {
	cstr := strings.Join(slices.Sorted(maps.Keys(choices)), ", ")
	var ok bool
	if *p, ok = choices[dflt]; !ok {
		panic(fmt.Errorf("invalid default for %v option: %v", dflt, name))
	}
	usage += fmt.Sprintf(" (one of: %v; default: %v)", cstr, dflt)
	flag.Func(name, usage, func(arg string) error {
		if arg == "" {
			arg = dflt
		}
		v, ok := choices[arg]
		if !ok {
			return fmt.Errorf("expected one of: %v", cstr)
		}
		*p = v
		if post != nil {
			return post(arg)
		}
		return nil
	})
}

func parseFlags() *config {
	cfg := &config{}

	// The environment sets the starting point; -v and -q adjust it.
	if lvl, ok, err := logging.LevelFromEnv(); err != nil {
		log.Fatal(err)
	} else if ok {
		slogLevel.Set(lvl)
	}
	bumpLogLevel := func(lower bool) {
		slog.Debug("log level pre-change", "level", slogLevel.Level())
		slogLevel.Set(logging.BumpLevel(slogLevel.Level(), lower))
		slog.Debug("log level post-change", "level", slogLevel.Level())
	}
	setLogLevel := func(arg string) error {
		lvl, err := logging.StringToLevel(arg)
		if err != nil {
			return err
		}
		slogLevel.Set(lvl)
		return nil
	}
	flag.BoolFunc("v", "Increase log verbosity.", func(arg string) error {
		switch arg {
		case "", "true":
			bumpLogLevel(true)
		default:
			return setLogLevel(arg)
		}
		return nil
	})
	flag.BoolFunc("q", "Decrease log verbosity.", func(arg string) error {
		switch arg {
		case "", "true":
			bumpLogLevel(false)
		default:
			return setLogLevel(arg)
		}
		return nil
	})

	colorChoices := map[string]bool{
		"auto":   color.NoColor,
		"never":  true,
		"always": false,
	}
	choiceFlag(&color.NoColor, "color", colorChoices, "auto", nil,
		"Output colors according to `mode`.")
	choiceFlag(&cfg.mode, "mode", allModes, forkres.ModeFork.String(), nil,
		"Resolve according to `mode`: one resolution for all environments, one for a single environment, or one per fork.")
	choiceFlag(&cfg.output, "format", allOutput, "tree", nil,
		"Print resolutions according to `mode`.")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Read index metadata from the YAML `file`.")
	flag.Func("env", "Set the marker variable `name=value` of the target environment (repeatable; env mode only).",
		func(arg string) error {
			cfg.envs = append(cfg.envs, arg)
			return nil
		})
	flag.StringVar(&cfg.python, "python", "", "Query the target environment from the Python `interpreter` (env mode only).")
	flag.IntVar(&cfg.concurrency, "j", 0, "Resolve at most `n` sibling forks in parallel (0 means one per CPU).")
	flag.StringVar(&cfg.logFile, "log-file", "", "Also write logs to `path` (the extension is replaced with .log).")
	choiceFlag(&cfg.logFileOpts, "log-file-level", logging.FileLevels, "verbose", nil,
		"Write to the log file according to `level`.")
	help := func(string) error {
		// Pet peeve: Help output should be written to standard output, not standard error, when the
		// user explicitly requests the help.  This makes it easier for them to pipe the help output to
		// a pager.
		flag.CommandLine.SetOutput(os.Stdout)
		flag.Usage()
		os.Exit(0)
		return nil
	}
	helpUsage := "Print usage information and exit."
	flag.BoolFunc("h", helpUsage, help)
	flag.BoolFunc("help", helpUsage, help)
	flag.BoolFunc("version", "Print the version and exit.", func(string) error {
		v := ver()
		if v == "" {
			log.Fatal("the Go build information is unavalable; try passing the \"-buildvcs=true\" build option to go")
		}
		fmt.Printf("%s\n", v)
		os.Exit(0)
		return nil
	})
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] PROJECT.yaml\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if cfg.mode != forkres.ModeSpecificEnvironment && (len(cfg.envs) > 0 || cfg.python != "") {
		log.Fatal("-env and -python require '-mode=env'")
	}
	args := flag.Args()
	if len(args) != 1 {
		log.Fatal("exactly one project file is required")
	}
	cfg.project = args[0]
	return cfg
}

// consolePreset picks the console verbosity from the final log level.
func consolePreset(lvl slog.Level) logging.Preset {
	switch {
	case lvl > logging.LevelDebug:
		return logging.PresetDefault
	case lvl > logging.LevelTrace:
		return logging.PresetVerbose
	default:
		return logging.PresetExtraVerbose
	}
}

// setupLogging installs the final default logger.  The returned function closes the log file.
func setupLogging(cfg *config) (func() error, error) {
	opts := consolePreset(slogLevel.Level()).Options(true)
	opts.Level = slogLevel
	var h slog.Handler = logging.NewHandler(os.Stderr, opts)
	closeFn := func() error { return nil }
	if cfg.logFile != "" {
		f, path, err := logging.CreateLogFile(cfg.logFile)
		if err != nil {
			return nil, err
		}
		h = slog.NewMultiHandler(h, logging.NewHandler(f, &cfg.logFileOpts))
		closeFn = f.Close
		defer slog.Info("logging to file", "path", path)
	}
	slog.SetDefault(slog.New(h))
	return closeFn, nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := parseFlags()
	closeLog, err := setupLogging(cfg)
	if err != nil {
		log.Fatal(err)
	}
	err = run(ctx, cfg, os.Stdout)
	if err != nil {
		slog.DebugContext(ctx, "failed", "error", err)
	}
	if cerr := closeLog(); cerr != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", redf("error:"), err)
		os.Exit(1)
	}
}
