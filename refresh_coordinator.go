// refresh_coordinator.go
// ----------------------
// RefreshCoordinator serializes token renewal. The first request to hit a
// 401 becomes the leader and performs the renewal; every request that hits a
// 401 while the renewal is in flight joins the waiter queue and receives the
// leader's outcome.
//
// The in-progress flag and the queue are guarded by the same mutex. Complete
// drains the queue and clears the flag inside one critical section, so a
// request can never join a queue that has already been drained.
package authbridge

import "sync"

type refreshResult struct {
	token string
	err   error
}

// RefreshCoordinator is owned by a single AuthBridge instance.
type RefreshCoordinator struct {
	mu         sync.Mutex
	inProgress bool
	waiters    []chan refreshResult

	renewals int
	failures int
}

func NewRefreshCoordinator() *RefreshCoordinator {
	return &RefreshCoordinator{}
}

// AcquireOrJoin either grants the caller the renewal (leader == true, wait is
// nil) or enqueues the caller behind the renewal already in flight.
// A leader must call Complete exactly once.
func (c *RefreshCoordinator) AcquireOrJoin() (leader bool, wait <-chan refreshResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inProgress {
		// Buffered so Complete never blocks on a waiter whose caller gave up.
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		return false, ch
	}
	c.inProgress = true
	c.renewals++
	return true, nil
}

// Complete resolves every queued waiter with the same outcome and returns the
// coordinator to idle. It returns the number of waiters resolved.
func (c *RefreshCoordinator) Complete(token string, err error) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inProgress {
		return 0
	}

	res := refreshResult{token: token, err: err}
	if err != nil {
		res.token = ""
		c.failures++
	}
	waiters := c.waiters
	c.waiters = nil
	for _, ch := range waiters {
		ch <- res
	}
	c.inProgress = false
	return len(waiters)
}

func (c *RefreshCoordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}

// RefreshStats is a snapshot of the coordinator's counters.
type RefreshStats struct {
	Renewals   int // renewal cycles started
	Failures   int // renewal cycles that failed
	Waiting    int // requests currently queued
	InProgress bool
}

func (c *RefreshCoordinator) Stats() RefreshStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RefreshStats{
		Renewals:   c.renewals,
		Failures:   c.failures,
		Waiting:    len(c.waiters),
		InProgress: c.inProgress,
	}
}
