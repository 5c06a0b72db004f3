package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/membercache/pkg/membercache"
)

// StatsCmd returns the stats command.
func StatsCmd(s *Session) *Command {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print as JSON")

	return &Command{
		Flags: fs,
		Usage: "stats [--json]",
		Short: "Show registry counters",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			st := s.reg.Stats()

			if *asJSON {
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}

				o.Println(string(data))

				return nil
			}

			o.Printf("caches linked:    %d\n", st.Caches)
			o.Printf("max capacity:     %d\n", st.MaxCapacity)
			o.Printf("tables:           %d allocated, %d released\n", st.TablesAllocated, st.TablesReleased)
			o.Printf("bytes:            %d allocated, %d released, %d live\n", st.BytesAllocated, st.BytesReleased, st.LiveBytes())
			o.Printf("sweeps:           %d\n", st.Sweeps)
			o.Printf("dropped inserts:  %d\n", st.Dropped)

			return nil
		},
	}
}

// ClearCmd returns the clear command.
func ClearCmd(s *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("clear", flag.ContinueOnError),
		Usage: "clear [bytes]",
		Short: "Drop cache tables until bytes are released (default: all)",
		Exec: func(_ context.Context, o *IO, args []string) error {
			budget := uint64(math.MaxUint64)

			if len(args) > 1 {
				return fmt.Errorf("%w: clear [bytes]", ErrTooManyArgs)
			}

			if len(args) == 1 {
				n, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("%w: %q", ErrInvalidNumber, args[0])
				}

				budget = n
			}

			freed := s.reg.ClearAll(budget)
			o.Printf("freed %d bytes, %d caches still linked\n", freed, s.reg.Len())

			return nil
		},
	}
}

// SweepCmd returns the sweep command.
func SweepCmd(s *Session) *Command {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	force := fs.BoolP("force", "f", false, "sweep regardless of free memory")

	return &Command{
		Flags: fs,
		Usage: "sweep [--force]",
		Short: "Run one memory-pressure sweep",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if *force {
				o.Printf("freed %d bytes\n", s.sweeper.Force())

				return nil
			}

			freed, swept := s.sweeper.SweepOnce()
			if !swept {
				o.Println("no memory pressure, nothing swept")

				return nil
			}

			o.Printf("freed %d bytes\n", freed)

			return nil
		},
	}
}

// ConfigCmd returns the config command.
func ConfigCmd(s *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("config", flag.ContinueOnError),
		Usage: "config",
		Short: "Show resolved configuration",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			cfg := s.cfg

			o.Println("max_capacity=" + strconv.FormatUint(cfg.MaxCapacity, 10))
			o.Println("sweep_interval=" + cfg.SweepInterval.String())
			o.Println("min_free_bytes=" + strconv.FormatUint(cfg.MinFreeBytes, 10))
			o.Println("sweep_budget_bytes=" + strconv.FormatUint(cfg.SweepBudgetBytes, 10))
			o.Println("log_level=" + cfg.LogLevel)
			o.Println("")
			o.Println("# sources")

			if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
				o.Println("(defaults only)")

				return nil
			}

			if cfg.Sources.Global != "" {
				o.Println("global_config=" + cfg.Sources.Global)
			}

			if cfg.Sources.Project != "" {
				o.Println("project_config=" + cfg.Sources.Project)
			}

			return nil
		},
	}
}

// Dump is the document written by the dump command.
type Dump struct {
	Session  string                    `json:"session"`
	Registry membercache.RegistryStats `json:"registry"`
	Types    []DumpType                `json:"types"`
}

// DumpType is one type in a [Dump].
type DumpType struct {
	Name       string            `json:"name"`
	MRO        []string          `json:"mro"`
	Hits       uint64            `json:"hits"`
	Misses     uint64            `json:"misses"`
	Cache      membercache.Stats `json:"cache"`
	ClassCache membercache.Stats `json:"class_cache"`
	Slots      []DumpSlot        `json:"slots,omitempty"`
}

// DumpSlot is one cached slot in a [Dump].
type DumpSlot struct {
	Cache string `json:"cache"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Decl  string `json:"decl"`
}

// DumpCmd returns the dump command.
func DumpCmd(s *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("dump", flag.ContinueOnError),
		Usage: "dump <file>",
		Short: "Write a JSON snapshot of all types and caches",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: dump <file>", ErrMissingArgs)
			}

			data, err := json.MarshalIndent(s.snapshot(), "", "  ")
			if err != nil {
				return fmt.Errorf("encoding dump: %w", err)
			}

			path := s.path(args[0])

			err = os.MkdirAll(filepath.Dir(path), 0o750)
			if err != nil {
				return fmt.Errorf("writing dump: %w", err)
			}

			err = atomic.WriteFile(path, bytes.NewReader(append(data, '\n')))
			if err != nil {
				return fmt.Errorf("writing dump: %w", err)
			}

			o.Println("wrote", path)

			return nil
		},
	}
}

func (s *Session) snapshot() Dump {
	d := Dump{Session: s.id.String(), Registry: s.reg.Stats()}

	for _, t := range s.universe.Types() {
		hits, misses := t.Counters()

		dt := DumpType{
			Name:       t.Name(),
			Hits:       hits,
			Misses:     misses,
			Cache:      t.Cache().Stats(),
			ClassCache: t.ClassCache().Stats(),
		}

		for _, tp := range t.MRO() {
			dt.MRO = append(dt.MRO, tp.Name())
		}

		dt.Slots = append(dt.Slots, dumpSlots("instance", t.Cache())...)
		dt.Slots = append(dt.Slots, dumpSlots("class", t.ClassCache())...)

		d.Types = append(d.Types, dt)
	}

	return d
}

func dumpSlots(which string, c *membercache.Cache) []DumpSlot {
	var out []DumpSlot

	c.Range(func(slot membercache.Slot) bool {
		decl := ""
		if slot.Decl != nil {
			decl = slot.Decl.Name()
		}

		out = append(out, DumpSlot{Cache: which, Kind: slot.Kind.String(), Name: slot.Name, Decl: decl})

		return true
	})

	slices.SortFunc(out, func(a, b DumpSlot) int { return strings.Compare(a.Name, b.Name) })

	return out
}
