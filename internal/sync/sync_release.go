//go:build !deadlock

// Package sync provides the mutex types used by the hub and the WebSocket
// server. Building with -tags deadlock swaps them for go-deadlock types
// that report lock-order inversions and locks held too long.
package sync

import "sync"

// Mutex is the standard sync.Mutex.
type Mutex = sync.Mutex

// RWMutex is the standard sync.RWMutex.
type RWMutex = sync.RWMutex

// Once is the standard sync.Once.
type Once = sync.Once

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

// Detecting reports whether deadlock detection is compiled in and enabled.
func Detecting() bool {
	return false
}
