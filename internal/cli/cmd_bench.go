package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/membercache/pkg/membercache"
)

// BenchCmd returns the bench command.
func BenchCmd(s *Session) *Command {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	workers := fs.IntP("workers", "w", 4, "concurrent resolvers")
	rounds := fs.IntP("rounds", "r", 10, "lookups of every name per worker")
	keep := fs.Bool("keep", false, "keep the bench types afterwards")

	return &Command{
		Flags: fs,
		Usage: "bench <names> [flags]",
		Short: "Resolve <names> attributes from concurrent workers",
		Long: `Create a base type declaring <names> methods and a derived type, then
resolve every name on the derived type from --workers goroutines. The first
lookup of each name walks the MRO and fills the cache; later lookups hit it.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: bench <names>", ErrMissingArgs)
			}

			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("%w: names must be a positive integer", ErrInvalidNumber)
			}

			if *workers < 1 || *rounds < 1 {
				return fmt.Errorf("%w: workers and rounds must be positive", ErrInvalidNumber)
			}

			return s.bench(ctx, o, n, *workers, *rounds, *keep)
		},
	}
}

func (s *Session) bench(ctx context.Context, o *IO, n, workers, rounds int, keep bool) error {
	s.benchRuns++
	baseName := fmt.Sprintf("bench%d_base", s.benchRuns)
	leafName := fmt.Sprintf("bench%d", s.benchRuns)

	base, err := s.universe.NewType(baseName, "")
	if err != nil {
		return err
	}

	leaf, err := s.universe.NewType(leafName, baseName)
	if err != nil {
		return err
	}

	if !keep {
		defer func() {
			_ = s.universe.Destroy(leafName)
			_ = s.universe.Destroy(baseName)
		}()
	}

	names := make([]string, n)
	for i := range names {
		names[i] = "m" + strconv.Itoa(i)

		err = base.DefineMethod(membercache.MethodDesc{Name: names[i], Func: boundMethod(base, names[i])})
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()

	for w := range workers {
		g.Go(func() error {
			for r := range rounds {
				if err := ctx.Err(); err != nil {
					return err
				}

				// Stagger start offsets so workers race on different names.
				for i := range names {
					name := names[(i+w*n/workers+r)%n]
					if _, ok := leaf.FindAttr(name); !ok {
						return fmt.Errorf("%s.%s did not resolve", leafName, name)
					}
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	total := workers * rounds * n
	hits, misses := leaf.Counters()
	st := leaf.Cache().Stats()

	o.Printf("%d lookups in %v (%.0f ops/sec)\n", total, elapsed.Round(time.Microsecond), float64(total)/elapsed.Seconds())
	o.Printf("hits=%d misses=%d\n", hits, misses)
	o.Printf("cache: %d slots, capacity %d, generation %d\n", st.Size, st.Capacity, st.Generation)

	s.log.V(1).Info("bench finished", "type", leafName, "names", n, "workers", workers, "elapsed", elapsed)

	return nil
}
