//go:build !linux

package pressure

// SystemMemInfo is not implemented on this platform.
func SystemMemInfo() (free, total uint64, ok bool) {
	return 0, 0, false
}
