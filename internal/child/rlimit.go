package child

import (
	"fmt"
	"strings"
	"sync"
	"syscall"
)

// spawnMu serializes the narrow fork/exec window in which rlimits and
// umask are temporarily installed on the parent so a forking child
// inherits them. The supervisor's own state mutation is single-loop, but
// spawns can run on independent driver goroutines, so this guards the
// shared OS-level setting rather than the domain state.
var spawnMu sync.Mutex

// resourceNames maps the config's rlimit names (§3 "resources") to their
// syscall.RLIMIT_* constant. Names follow the POSIX setrlimit(2) resource
// names, lowercased, without the RLIMIT_ prefix.
var resourceNames = map[string]int{
	"nofile": syscall.RLIMIT_NOFILE,
	"nproc":  rlimitNproc,
	"core":   syscall.RLIMIT_CORE,
	"fsize":  syscall.RLIMIT_FSIZE,
	"as":     rlimitAS,
	"data":   syscall.RLIMIT_DATA,
	"stack":  syscall.RLIMIT_STACK,
	"rss":    rlimitRSS,
}

// ParseRLimits turns the config's name->soft-limit map into RLimit
// values, preserving each resource's current hard limit as required by
// the design ("applies per-rlimit soft limits while preserving hard
// limits"). Unknown names are a configuration error.
func ParseRLimits(resources map[string]uint64) ([]RLimit, error) {
	limits := make([]RLimit, 0, len(resources))
	for name, soft := range resources {
		resource, ok := resourceNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown resource limit %q", name)
		}
		var current syscall.Rlimit
		if err := syscall.Getrlimit(resource, &current); err != nil {
			return nil, fmt.Errorf("read current limit for %q: %w", name, err)
		}
		limits = append(limits, RLimit{Resource: resource, Cur: soft, Max: current.Max})
	}
	return limits, nil
}

type savedRLimit struct {
	resource int
	old      syscall.Rlimit
}

// reserveRLimits installs each requested limit on the current (parent)
// process, after saving its prior value, so that the child process
// started immediately afterwards inherits it across fork. Call
// restoreRLimits once the child has been started.
func reserveRLimits(limits []RLimit) ([]savedRLimit, error) {
	saved := make([]savedRLimit, 0, len(limits))
	for _, rl := range limits {
		var old syscall.Rlimit
		if err := syscall.Getrlimit(rl.Resource, &old); err != nil {
			restoreRLimits(saved)
			return nil, err
		}
		next := syscall.Rlimit{Cur: rl.Cur, Max: rl.Max}
		if err := syscall.Setrlimit(rl.Resource, &next); err != nil {
			restoreRLimits(saved)
			return nil, err
		}
		saved = append(saved, savedRLimit{resource: rl.Resource, old: old})
	}
	return saved, nil
}

func restoreRLimits(saved []savedRLimit) {
	for i := len(saved) - 1; i >= 0; i-- {
		s := saved[i]
		_ = syscall.Setrlimit(s.resource, &s.old)
	}
}
