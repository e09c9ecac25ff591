//go:build linux

package papercache

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// processMemory reports the current resident set size and the process
// high-water mark, in bytes. RSS comes from /proc/self/statm (the kernel's
// own page accounting); HWM comes from getrusage's Maxrss, which Linux
// reports in kilobytes.
func processMemory() (rss, hwm uint64) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err == nil {
		hwm = uint64(ru.Maxrss) * 1024
	}

	f, err := os.Open("/proc/self/statm")
	if err != nil {
		return rss, hwm
	}
	defer f.Close()

	var size, resident uint64
	if _, err := fmt.Fscan(bufio.NewReader(f), &size, &resident); err == nil {
		rss = resident * uint64(os.Getpagesize())
	}

	return rss, hwm
}
