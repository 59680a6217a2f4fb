// Package pool provides pooled resources shared across scanctl packages.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer set to fire after d, reusing a pooled timer when
// one is available.
//
// Return the timer to the pool with PutTimer once it is no longer needed.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer) // only *time.Timer values are ever pooled
		if t.Reset(d) {
			// Timer was still active, drain the channel to avoid a stale fire.
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// PutTimer stops t and returns it to the pool.
//
// t must not be accessed after returning it to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Drain t.C if the caller hasn't consumed the fire yet.
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
