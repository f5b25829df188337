package child

import (
	"fmt"
	"strconv"
	"syscall"
)

// ParseUmask parses an octal umask string. An empty string means inherit
// the supervisor's umask (-1).
func ParseUmask(s string) (int, error) {
	if s == "" {
		return -1, nil
	}
	val, err := strconv.ParseInt(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid umask %q: %w", s, err)
	}
	if val < 0 || val > 0777 {
		return 0, fmt.Errorf("umask %q out of range (must be 0-0777)", s)
	}
	return int(val), nil
}

// applyUmask installs mask on the current process and returns a closure
// that restores the prior umask. mask < 0 means inherit: a no-op.
func applyUmask(mask int) (restore func(), err error) {
	if mask < 0 {
		return func() {}, nil
	}
	old := syscall.Umask(mask)
	return func() { syscall.Umask(old) }, nil
}
