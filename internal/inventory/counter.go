package inventory

import "sync"

// RefreshCounter is a monotonic signal bumped whenever the video listing
// should be refetched.
type RefreshCounter struct {
	mu   sync.Mutex
	n    uint64
	subs []chan uint64
}

// Bump increments the counter, notifies subscribers and returns the new value.
func (c *RefreshCounter) Bump() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.n
	}
	return c.n
}

func (c *RefreshCounter) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Subscribe returns a channel carrying the latest counter value after each
// Bump. Values a slow reader missed are coalesced.
func (c *RefreshCounter) Subscribe() <-chan uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan uint64, 1)
	c.subs = append(c.subs, ch)
	return ch
}
