package service

import (
	"sync"
	"time"
)

// Navigator turns navigation intents into actual redirects. Intents are
// decoupled from state transitions so a pending navigation can be cancelled
// when the situation changes before the redirect fires (a sign-out racing a
// role-mismatch redirect, for instance).
type Navigator struct {
	navigate func(dest string)

	mu      sync.Mutex
	timer   *time.Timer
	pending string
}

// NewNavigator builds a Navigator around the given redirect function.
func NewNavigator(navigate func(dest string)) *Navigator {
	return &Navigator{navigate: navigate}
}

// Go schedules navigation to dest after delay, replacing any pending
// navigation. A zero delay fires synchronously.
func (n *Navigator) Go(dest string, delay time.Duration) {
	n.mu.Lock()
	n.cancelLocked()
	if delay <= 0 {
		n.mu.Unlock()
		n.navigate(dest)
		return
	}
	n.pending = dest
	n.timer = time.AfterFunc(delay, func() {
		n.mu.Lock()
		if n.pending != dest {
			n.mu.Unlock()
			return
		}
		n.pending = ""
		n.timer = nil
		n.mu.Unlock()
		n.navigate(dest)
	})
	n.mu.Unlock()
}

// Cancel drops any pending navigation.
func (n *Navigator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelLocked()
}

// Pending returns the destination waiting to fire, empty when none.
func (n *Navigator) Pending() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}

func (n *Navigator) cancelLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.pending = ""
}
