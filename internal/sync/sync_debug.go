//go:build deadlock

// Package sync provides the mutex types used by the hub and the WebSocket
// server. Building with -tags deadlock swaps them for go-deadlock types
// that report lock-order inversions and locks held too long.
package sync

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// Mutex is a mutual exclusion lock with deadlock detection.
type Mutex = deadlock.Mutex

// RWMutex is a reader/writer lock with deadlock detection.
type RWMutex = deadlock.RWMutex

// Once is the standard sync.Once.
type Once = sync.Once

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

// Detecting reports whether deadlock detection is compiled in and enabled.
func Detecting() bool {
	return !deadlock.Opts.Disable
}

func init() {
	deadlock.Opts.DeadlockTimeout = 30 * time.Second

	if os.Getenv("MSGBOARD_NO_DEADLOCK_DETECT") != "" {
		deadlock.Opts.Disable = true
		return
	}

	deadlock.Opts.PrintAllCurrentGoroutines = true
	log.Warn().Dur("timeout", deadlock.Opts.DeadlockTimeout).Msg("deadlock detection enabled")
}
