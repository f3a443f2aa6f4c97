package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// latest drains s and returns the most recent pushed count.
func latest(t *testing.T, s *Session) int {
	t.Helper()
	select {
	case n := <-s.Updates():
		return n
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
		return -1
	}
}

func TestBroadcaster_ConnectDisconnect(t *testing.T) {
	b := NewBroadcaster()
	assert.Equal(t, 0, b.Snapshot())

	a := b.Connect()
	assert.Equal(t, 1, latest(t, a))

	c := b.Connect()
	assert.Equal(t, 2, latest(t, a))
	assert.Equal(t, 2, latest(t, c))
	assert.Equal(t, 2, b.Snapshot())

	assert.Equal(t, 1, b.Disconnect(c.ID))
	assert.Equal(t, 1, latest(t, a))
	assert.Equal(t, 1, b.Snapshot())

	select {
	case <-c.Done():
	default:
		t.Fatal("disconnected session should be done")
	}
}

func TestBroadcaster_FloorsAtZero(t *testing.T) {
	b := NewBroadcaster()

	a := b.Connect()
	c := b.Connect()

	assert.Equal(t, 1, b.Disconnect(a.ID))
	assert.Equal(t, 0, b.Disconnect(c.ID))

	// More disconnects than connects, including repeats and strangers.
	assert.Equal(t, 0, b.Disconnect(a.ID))
	assert.Equal(t, 0, b.Disconnect(c.ID))
	assert.Equal(t, 0, b.Disconnect("never-connected"))
	assert.Equal(t, 0, b.Snapshot())

	d := b.Connect()
	assert.Equal(t, 1, latest(t, d))
}

func TestBroadcaster_SlowReaderSeesLatest(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Connect()

	for i := 0; i < 10; i++ {
		b.Connect()
	}

	// One slot: intermediate values were replaced.
	assert.Equal(t, 11, latest(t, slow))
	select {
	case n := <-slow.Updates():
		t.Fatalf("unexpected extra update %d", n)
	default:
	}
}

func TestBroadcaster_ConnectStorm(t *testing.T) {
	b := NewBroadcaster()

	const clients = 50
	sessions := make([]*Session, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = b.Connect()
		}(i)
	}
	wg.Wait()

	require.Equal(t, clients, b.Snapshot())
	for i, s := range sessions {
		assert.Equal(t, clients, latest(t, s), "session %d", i)
	}
}

func TestBroadcaster_ConcurrentChurn(t *testing.T) {
	b := NewBroadcaster()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := b.Connect()
			b.Disconnect(s.ID)
			b.Disconnect(s.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.Snapshot())
}

func TestBroadcaster_PullMatchesLastPush(t *testing.T) {
	var mu sync.Mutex
	var pushed []int
	b := NewBroadcaster(WithObserver(func(n int) {
		mu.Lock()
		defer mu.Unlock()
		pushed = append(pushed, n)
	}))

	a := b.Connect()
	c := b.Connect()
	b.Disconnect(a.ID)
	b.Connect()
	b.Disconnect(c.ID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 1, 2, 1}, pushed)
	assert.Equal(t, pushed[len(pushed)-1], b.Snapshot())
}
