//go:build !deadlock_test

// Package lock provides mutex types which are swapped for deadlock
// detecting ones when built with the 'deadlock_test' tag.
package lock

import "sync"

type Mutex = sync.Mutex
