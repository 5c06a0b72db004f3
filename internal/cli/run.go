package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/membercache/internal/config"
)

// exitInterrupted is returned when a signal stops a script.
const exitInterrupted = 130

type globalFlags struct {
	fs *flag.FlagSet

	workDir     string
	configPath  string
	verbose     int
	interactive bool
	exec        []string
	help        bool

	maxCapacity   uint64
	minFree       uint64
	sweepBudget   uint64
	sweepInterval string
	logLevel      string
}

func newGlobalFlags() *globalFlags {
	g := &globalFlags{fs: flag.NewFlagSet("mcache", flag.ContinueOnError)}

	fs := g.fs
	fs.SetInterspersed(false)
	fs.SetOutput(&strings.Builder{}) // discard pflag output
	fs.StringVarP(&g.workDir, "cwd", "C", "", "run as if started in `dir`")
	fs.StringVarP(&g.configPath, "config", "c", "", "use the given config `file`")
	fs.CountVarP(&g.verbose, "verbose", "v", "more logging (repeatable)")
	fs.BoolVarP(&g.interactive, "interactive", "i", false, "start the prompt even when stdin is not a terminal")
	fs.StringArrayVarP(&g.exec, "exec", "e", nil, "run `command` and exit (repeatable)")
	fs.BoolVarP(&g.help, "help", "h", false, "show help")
	fs.Uint64Var(&g.maxCapacity, "max-capacity", 0, "slot cap per cache table")
	fs.Uint64Var(&g.minFree, "min-free-bytes", 0, "sweep caches when free memory drops below this")
	fs.Uint64Var(&g.sweepBudget, "sweep-budget-bytes", 0, "bytes one sweep may free (0: all)")
	fs.StringVar(&g.sweepInterval, "sweep-interval", "", "how often to check free memory")
	fs.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	return g
}

// overrides returns the flags that were set as a config overlay.
func (g *globalFlags) overrides() config.Overlay {
	var o config.Overlay

	if g.fs.Changed("max-capacity") {
		o.MaxCapacity = &g.maxCapacity
	}

	if g.fs.Changed("min-free-bytes") {
		o.MinFreeBytes = &g.minFree
	}

	if g.fs.Changed("sweep-budget-bytes") {
		o.SweepBudgetBytes = &g.sweepBudget
	}

	if g.fs.Changed("sweep-interval") {
		o.SweepInterval = &g.sweepInterval
	}

	if g.fs.Changed("log-level") {
		o.LogLevel = &g.logLevel
	}

	return o
}

// Run is the main entry point. Returns exit code.
//
// Commands come from -e flags, a script file, an interactive prompt when
// stdin is a terminal, or stdin lines otherwise.
func Run(stdin io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	g := newGlobalFlags()

	if err := g.fs.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, g.fs)

		return 1
	}

	if g.help {
		printUsage(out, g.fs)

		return 0
	}

	workDir := g.workDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)

			return 1
		}
	}

	cfg, err := config.LoadConfig(config.LoadConfigInput{
		WorkDirOverride: workDir,
		ConfigPath:      g.configPath,
		Env:             env,
		Overrides:       g.overrides(),
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	log, flush := newLogger(errOut, zapLevel(cfg.LogLevel, g.verbose))
	defer flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				log.Info("interrupted")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	s := NewSession(cfg, workDir, log)

	if cfg.MinFreeBytes > 0 {
		s.StartSweeper(ctx)
	}

	o := NewIO(out, errOut)

	switch {
	case len(g.exec) > 0:
		return s.runLines(ctx, o, g.exec)
	case g.fs.NArg() > 1:
		fprintln(errOut, "error: expected at most one script file")

		return 1
	case g.fs.NArg() == 1:
		path := g.fs.Arg(0)
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		f, err := os.Open(path)
		if err != nil {
			fprintln(errOut, "error:", err)

			return 1
		}
		defer f.Close()

		return s.runScript(ctx, o, f)
	case g.interactive || isTerminal(stdin):
		repl := &REPL{session: s, io: o}
		if err := repl.Run(ctx); err != nil {
			fprintln(errOut, "error:", err)

			return 1
		}

		return 0
	case stdin == nil:
		printUsage(out, g.fs)

		return 0
	default:
		return s.runScript(ctx, o, stdin)
	}
}

// runLines executes lines in order. A failing line does not stop the run
// but makes the exit code 1.
func (s *Session) runLines(ctx context.Context, o *IO, lines []string) int {
	code := 0

	for _, line := range lines {
		if ctx.Err() != nil {
			return exitInterrupted
		}

		quit, c := s.Exec(ctx, o, line)
		if c != 0 {
			code = c
		}

		if quit {
			break
		}
	}

	return code
}

func (s *Session) runScript(ctx context.Context, o *IO, r io.Reader) int {
	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		o.ErrPrintln("error: reading script:", err)

		return 1
	}

	return s.runLines(ctx, o, lines)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok || f == nil {
		return false
	}

	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fprintln(w, `mcache - member cache playground

Usage: mcache [flags] [script]

Reads commands from -e flags, a script file, the interactive prompt, or
stdin. Type 'help' at the prompt for the command list.

Global flags:`)

	var buf strings.Builder
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fs.SetOutput(&strings.Builder{})

	_, _ = io.WriteString(w, buf.String())
}
