package pressure

import "golang.org/x/sys/unix"

// SystemMemInfo reads free and total RAM from sysinfo(2).
func SystemMemInfo() (free, total uint64, ok bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, 0, false
	}

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	return uint64(info.Freeram) * unit, uint64(info.Totalram) * unit, true
}
