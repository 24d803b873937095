//go:build !linux

package scheduler

// systemAvailableMemory is unavailable off Linux; the capacity gate
// falls back to the CPU cap alone.
func systemAvailableMemory() (int64, bool) {
	return 0, false
}
