package application

import (
	"strconv"

	"github.com/clamsproject/dashboard/internal/ports"
)

// FormatRevision renders a revision for humans, such as "main@1a2b3c4d".
func FormatRevision(rev ports.Revision) string {
	if rev.Branch == "" {
		return rev.Short + " (detached)"
	}
	return rev.Branch + "@" + rev.Short
}

// FileTooLarge reports whether a file of size bytes exceeds limit. A limit
// of zero or less disables the check.
func FileTooLarge(size, limit int64) bool {
	return limit > 0 && size > limit
}

// HumanSize renders a byte count the way file listings show it.
func HumanSize(size int64) string {
	switch {
	case size >= 1<<20:
		return strconv.FormatFloat(float64(size)/(1<<20), 'f', 1, 64) + " MB"
	case size >= 1<<10:
		return strconv.FormatFloat(float64(size)/(1<<10), 'f', 1, 64) + " KB"
	default:
		return strconv.FormatInt(size, 10) + " B"
	}
}
