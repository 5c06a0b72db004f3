// Package pressure clears member caches when the machine runs low on memory.
package pressure

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/calvinalkan/membercache/pkg/membercache"
)

// DefaultInterval is used when Sweeper.Interval is zero.
const DefaultInterval = 5 * time.Second

// MemInfo reports free and total memory in bytes. ok is false when the
// platform cannot tell.
type MemInfo func() (free, total uint64, ok bool)

// Sweeper calls [membercache.Registry.ClearAll] when free memory drops
// below MinFreeBytes.
type Sweeper struct {
	Registry *membercache.Registry

	// MinFreeBytes is the free-memory floor. Zero disables pressure-driven
	// sweeps; Force still works.
	MinFreeBytes uint64

	// BudgetBytes bounds how much one sweep frees. Zero means no bound.
	BudgetBytes uint64

	Interval time.Duration
	Logger   logr.Logger

	// MemInfo defaults to the platform reader.
	MemInfo MemInfo
}

func (s *Sweeper) budget() uint64 {
	if s.BudgetBytes == 0 {
		return ^uint64(0)
	}

	return s.BudgetBytes
}

func (s *Sweeper) log() logr.Logger {
	if s.Logger.GetSink() == nil {
		return logr.Discard()
	}

	return s.Logger
}

func (s *Sweeper) memInfo() (free, total uint64, ok bool) {
	if s.MemInfo != nil {
		return s.MemInfo()
	}

	return SystemMemInfo()
}

// SweepOnce checks free memory and sweeps if it is below the floor.
func (s *Sweeper) SweepOnce() (freed uint64, swept bool) {
	if s.MinFreeBytes == 0 {
		return 0, false
	}

	free, total, ok := s.memInfo()
	if !ok || free >= s.MinFreeBytes {
		return 0, false
	}

	freed = s.Registry.ClearAll(s.budget())

	s.log().Info("memory pressure sweep",
		"free", free,
		"total", total,
		"minFree", s.MinFreeBytes,
		"freed", freed,
	)

	return freed, true
}

// Force sweeps regardless of free memory.
func (s *Sweeper) Force() uint64 {
	freed := s.Registry.ClearAll(s.budget())

	s.log().V(1).Info("forced sweep", "freed", freed)

	return freed
}

// Run calls SweepOnce every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	if s.MinFreeBytes == 0 {
		s.log().V(1).Info("pressure sweeps disabled")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}
