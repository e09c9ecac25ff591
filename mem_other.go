//go:build !linux

package papercache

// processMemory has no portable implementation outside Linux; reporting a
// process's RSS/HWM depends on OS facilities this module doesn't chase
// across every platform. Callers see zero rather than an error.
func processMemory() (rss, hwm uint64) {
	return 0, 0
}
