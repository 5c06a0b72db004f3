package pressure_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calvinalkan/membercache/internal/pressure"
	"github.com/calvinalkan/membercache/pkg/membercache"
)

type decl struct{}

func (decl) Name() string { return "T" }

// filledRegistry returns a registry with n linked caches.
func filledRegistry(t *testing.T, n int) *membercache.Registry {
	t.Helper()

	reg := membercache.NewRegistry(membercache.Options{})

	for i := range n {
		c := reg.NewCache()
		name := fmt.Sprintf("m%d", i)
		c.AddMethod(decl{}, membercache.HashName(name), membercache.MethodDesc{Name: name})
	}

	if reg.Len() != n {
		t.Fatalf("registry len=%d, want %d", reg.Len(), n)
	}

	return reg
}

func fixedMem(free uint64) pressure.MemInfo {
	return func() (uint64, uint64, bool) { return free, 1 << 30, true }
}

func Test_SweepOnce_Does_Nothing_When_Free_Memory_Is_Above_Floor(t *testing.T) {
	t.Parallel()

	reg := filledRegistry(t, 3)
	s := &pressure.Sweeper{Registry: reg, MinFreeBytes: 100, MemInfo: fixedMem(200)}

	if freed, swept := s.SweepOnce(); swept || freed != 0 {
		t.Fatalf("SweepOnce()=%d,%v, want no sweep", freed, swept)
	}

	if reg.Len() != 3 {
		t.Fatalf("registry len=%d, want 3", reg.Len())
	}
}

func Test_SweepOnce_Clears_Caches_When_Free_Memory_Is_Below_Floor(t *testing.T) {
	t.Parallel()

	reg := filledRegistry(t, 3)
	s := &pressure.Sweeper{Registry: reg, MinFreeBytes: 100, MemInfo: fixedMem(50)}
	want := reg.Stats().LiveBytes()

	freed, swept := s.SweepOnce()
	if !swept {
		t.Fatal("SweepOnce did not sweep under pressure")
	}

	if freed != want {
		t.Fatalf("freed=%d, want %d", freed, want)
	}

	if reg.Len() != 0 {
		t.Fatalf("registry len=%d, want 0", reg.Len())
	}
}

func Test_SweepOnce_Stops_At_Budget(t *testing.T) {
	t.Parallel()

	reg := filledRegistry(t, 4)
	s := &pressure.Sweeper{Registry: reg, MinFreeBytes: 100, BudgetBytes: 1, MemInfo: fixedMem(0)}

	if _, swept := s.SweepOnce(); !swept {
		t.Fatal("SweepOnce did not sweep")
	}

	if reg.Len() != 3 {
		t.Fatalf("registry len=%d, want 3 after a one-byte budget", reg.Len())
	}
}

func Test_SweepOnce_Is_Disabled_When_Floor_Is_Zero(t *testing.T) {
	t.Parallel()

	reg := filledRegistry(t, 2)
	s := &pressure.Sweeper{Registry: reg, MemInfo: fixedMem(0)}

	if _, swept := s.SweepOnce(); swept {
		t.Fatal("SweepOnce swept with a zero floor")
	}
}

func Test_SweepOnce_Skips_When_Memory_Is_Unknown(t *testing.T) {
	t.Parallel()

	reg := filledRegistry(t, 2)
	s := &pressure.Sweeper{
		Registry:     reg,
		MinFreeBytes: 1 << 40,
		MemInfo:      func() (uint64, uint64, bool) { return 0, 0, false },
	}

	if _, swept := s.SweepOnce(); swept {
		t.Fatal("SweepOnce swept without memory information")
	}
}

func Test_Force_Clears_Regardless_Of_Memory(t *testing.T) {
	t.Parallel()

	reg := filledRegistry(t, 2)
	s := &pressure.Sweeper{Registry: reg, MemInfo: fixedMem(1 << 40)}

	if freed := s.Force(); freed == 0 {
		t.Fatal("Force freed nothing")
	}

	if reg.Len() != 0 {
		t.Fatalf("registry len=%d, want 0", reg.Len())
	}
}

func Test_Run_Sweeps_Until_Context_Is_Done(t *testing.T) {
	t.Parallel()

	reg := filledRegistry(t, 2)

	var calls atomic.Int64

	s := &pressure.Sweeper{
		Registry:     reg,
		MinFreeBytes: 100,
		Interval:     time.Millisecond,
		MemInfo: func() (uint64, uint64, bool) {
			calls.Add(1)

			return 0, 1 << 30, true
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for reg.Stats().Sweeps == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Run never swept")
		}

		time.Sleep(time.Millisecond)
	}

	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if reg.Len() != 0 {
		t.Fatalf("registry len=%d after sweep, want 0", reg.Len())
	}

	if calls.Load() == 0 {
		t.Fatal("MemInfo never consulted")
	}
}

func Test_SystemMemInfo_Reports_Sane_Values_When_Available(t *testing.T) {
	t.Parallel()

	free, total, ok := pressure.SystemMemInfo()
	if !ok {
		t.Skip("memory information not available on this platform")
	}

	if total == 0 || free > total {
		t.Fatalf("SystemMemInfo()=%d,%d, want 0 < free <= total", free, total)
	}
}
