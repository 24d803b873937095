//go:build linux

package scheduler

import "golang.org/x/sys/unix"

// systemAvailableMemory reports reclaimable memory in bytes. Buffers
// count as available since the kernel drops them under pressure.
func systemAvailableMemory() (int64, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	available := (uint64(info.Freeram) + uint64(info.Bufferram)) * uint64(info.Unit)
	return int64(available), true
}
