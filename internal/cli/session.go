package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/calvinalkan/membercache/internal/config"
	"github.com/calvinalkan/membercache/internal/pressure"
	"github.com/calvinalkan/membercache/internal/typesys"
	"github.com/calvinalkan/membercache/pkg/membercache"
)

// Session is one mcache run: a registry, the types living in it and the
// pressure sweeper watching it.
type Session struct {
	id       uuid.UUID
	cfg      config.Config
	workDir  string
	log      logr.Logger
	reg      *membercache.Registry
	universe *typesys.Universe
	sweeper  *pressure.Sweeper

	commands  []*Command
	byName    map[string]*Command
	benchRuns int
}

// NewSession creates an empty session from cfg. Relative paths given to
// commands resolve against workDir.
func NewSession(cfg config.Config, workDir string, log logr.Logger) *Session {
	id := uuid.Must(uuid.NewV7())
	log = log.WithValues("session", id.String())

	reg := membercache.NewRegistry(membercache.Options{
		MaxCapacity: cfg.MaxCapacity,
		Logger:      log,
	})

	s := &Session{
		id:       id,
		cfg:      cfg,
		workDir:  workDir,
		log:      log,
		reg:      reg,
		universe: typesys.NewUniverse(reg),
		sweeper: &pressure.Sweeper{
			Registry:     reg,
			MinFreeBytes: cfg.MinFreeBytes,
			BudgetBytes:  cfg.SweepBudgetBytes,
			Interval:     cfg.SweepInterval,
			Logger:       log.WithName("pressure"),
		},
	}

	s.commands = []*Command{
		TypeCmd(s),
		DefCmd(s),
		GetCmd(s, false),
		GetCmd(s, true),
		TypesCmd(s),
		DestroyCmd(s),
		ShowCmd(s),
		StatsCmd(s),
		ClearCmd(s),
		SweepCmd(s),
		DumpCmd(s),
		BenchCmd(s),
		ConfigCmd(s),
	}

	s.byName = make(map[string]*Command, len(s.commands))
	for _, c := range s.commands {
		s.byName[c.Name()] = c
		for _, a := range c.Aliases {
			s.byName[a] = c
		}
	}

	return s
}

// ID identifies the session in logs and dumps. IDs are time-ordered.
func (s *Session) ID() uuid.UUID { return s.id }

// Registry returns the session's cache registry.
func (s *Session) Registry() *membercache.Registry { return s.reg }

// Universe returns the session's types.
func (s *Session) Universe() *typesys.Universe { return s.universe }

// StartSweeper runs the pressure sweeper until ctx is done.
func (s *Session) StartSweeper(ctx context.Context) {
	go func() { _ = s.sweeper.Run(ctx) }()
}

// CommandNames returns every name and alias, for completion.
func (s *Session) CommandNames() []string {
	names := make([]string, 0, len(s.byName)+4)
	for _, c := range s.commands {
		names = append(names, c.Name())
		names = append(names, c.Aliases...)
	}

	return append(names, "help", "exit", "quit", "q")
}

// Exec runs one input line. It reports whether the session should end and
// the exit code of the command.
func (s *Session) Exec(ctx context.Context, o *IO, line string) (bool, int) {
	fields, err := splitLine(line)
	if err != nil {
		o.ErrPrintln("error:", err)

		return false, 1
	}

	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false, 0
	}

	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "exit", "quit", "q":
		return true, 0
	case "help", "?":
		s.printHelp(o, args)

		return false, 0
	}

	cmd, ok := s.byName[name]
	if !ok {
		o.ErrPrintln("error: unknown command:", name, "(type 'help' for commands)")

		return false, 1
	}

	return false, cmd.Run(ctx, o, args)
}

func (s *Session) printHelp(o *IO, args []string) {
	if len(args) > 0 {
		if cmd, ok := s.byName[args[0]]; ok {
			cmd.PrintHelp(o)

			return
		}
	}

	o.Println("Commands:")

	for _, c := range s.commands {
		o.Println(c.HelpLine())
	}

	o.Printf("  %-34s %s\n", "help [command]", "Show this help")
	o.Printf("  %-34s %s\n", "exit / quit / q", "Exit")
}

func (s *Session) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(s.workDir, p)
}

func (s *Session) lookupType(name string) (*typesys.Type, error) {
	return s.universe.Lookup(name)
}

// splitLine splits a command line on whitespace. Double quotes group words
// and a backslash escapes the next character inside them.
func splitLine(line string) ([]string, error) {
	var (
		fields  []string
		cur     strings.Builder
		inWord  bool
		quoted  bool
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
			inWord = true
		case !quoted && (r == ' ' || r == '\t'):
			if inWord {
				fields = append(fields, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if quoted {
		return nil, ErrUnterminatedQuote
	}

	if inWord {
		fields = append(fields, cur.String())
	}

	return fields, nil
}
