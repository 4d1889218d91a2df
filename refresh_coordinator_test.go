package authbridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshCoordinator_FirstCallerLeads(t *testing.T) {
	c := NewRefreshCoordinator()

	leader, wait := c.AcquireOrJoin()
	require.True(t, leader)
	require.Nil(t, wait)
	assert.True(t, c.InProgress())

	leader, wait = c.AcquireOrJoin()
	require.False(t, leader)
	require.NotNil(t, wait)
	assert.Equal(t, 1, c.Stats().Waiting)
}

func TestRefreshCoordinator_SuccessResolvesEveryWaiter(t *testing.T) {
	c := NewRefreshCoordinator()
	leader, _ := c.AcquireOrJoin()
	require.True(t, leader)

	var waits []<-chan refreshResult
	for i := 0; i < 5; i++ {
		_, w := c.AcquireOrJoin()
		waits = append(waits, w)
	}

	resolved := c.Complete("fresh", nil)
	assert.Equal(t, 5, resolved)
	for _, w := range waits {
		res := <-w
		assert.NoError(t, res.err)
		assert.Equal(t, "fresh", res.token)
	}
	assert.False(t, c.InProgress())
	assert.Equal(t, 0, c.Stats().Waiting)
}

func TestRefreshCoordinator_FailureResolvesEveryWaiterWithError(t *testing.T) {
	c := NewRefreshCoordinator()
	c.AcquireOrJoin()

	var waits []<-chan refreshResult
	for i := 0; i < 3; i++ {
		_, w := c.AcquireOrJoin()
		waits = append(waits, w)
	}

	boom := errors.New("boom")
	c.Complete("ignored", boom)
	for _, w := range waits {
		res := <-w
		assert.ErrorIs(t, res.err, boom)
		assert.Empty(t, res.token, "a failed cycle must not hand out a token")
	}

	stats := c.Stats()
	assert.Equal(t, 1, stats.Renewals)
	assert.Equal(t, 1, stats.Failures)
	assert.False(t, stats.InProgress)
}

func TestRefreshCoordinator_NewCycleAfterComplete(t *testing.T) {
	c := NewRefreshCoordinator()
	c.AcquireOrJoin()
	c.Complete("", errors.New("first cycle fails"))

	leader, wait := c.AcquireOrJoin()
	assert.True(t, leader, "a 401 after a finished cycle must start a new renewal")
	assert.Nil(t, wait)
	assert.Equal(t, 2, c.Stats().Renewals)
}

func TestRefreshCoordinator_CompleteWhenIdleIsNoop(t *testing.T) {
	c := NewRefreshCoordinator()
	assert.Equal(t, 0, c.Complete("x", nil))
	assert.False(t, c.InProgress())
}

func TestRefreshCoordinator_CompleteDoesNotBlockOnAbandonedWaiters(t *testing.T) {
	c := NewRefreshCoordinator()
	c.AcquireOrJoin()
	for i := 0; i < 10; i++ {
		c.AcquireOrJoin() // nobody reads these
	}
	assert.Equal(t, 10, c.Complete("fresh", nil))
}

func TestRefreshCoordinator_ConcurrentAcquireHasOneLeader(t *testing.T) {
	c := NewRefreshCoordinator()

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		leaders int
		waits   []<-chan refreshResult
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			leader, w := c.AcquireOrJoin()
			mu.Lock()
			defer mu.Unlock()
			if leader {
				leaders++
				return
			}
			waits = append(waits, w)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, leaders)
	require.Len(t, waits, n-1)
	c.Complete("fresh", nil)
	for _, w := range waits {
		assert.Equal(t, "fresh", (<-w).token)
	}
}
