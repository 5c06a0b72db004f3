package membercache

// Table sizing.
//
// Capacities are always powers of two; tables store capacity-1 as their mask.
const (
	// Mask of the first table a cache allocates (16 slots).
	initialMask = uint64(15)

	// Default ceiling on slots per table. Growing beyond it is treated the
	// same as an allocation failure.
	defaultMaxCapacity = uint64(1) << 20

	// Smallest ceiling accepted in Options. Anything lower could not hold
	// the first table.
	minMaxCapacity = initialMask + 1

	// Bits shifted out of perturb on every probe step.
	perturbShift = 5

	// Probe steps until a 64-bit perturb is exhausted. After that the
	// i = 5*i + 1 recurrence visits every slot once per mask+1 steps.
	perturbSteps = (64 + perturbShift - 1) / perturbShift
)

// probeLimit returns how many probe steps are enough to visit every slot of
// a table with the given mask at least once.
func probeLimit(mask uint64) uint64 {
	return mask + 1 + perturbSteps
}
