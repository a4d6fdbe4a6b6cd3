package rangingtest

import (
	"rtb-engine/internal/ranging"
	"sync"
)

// Confirms collects confirmations in arrival order.
type Confirms struct {
	mu       sync.Mutex
	received []ranging.Confirm
}

func (c *Confirms) Handle(confirm ranging.Confirm) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, confirm)
}

func (c *Confirms) All() []ranging.Confirm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ranging.Confirm(nil), c.received...)
}

func (c *Confirms) For(requestID string) []ranging.Confirm {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []ranging.Confirm
	for _, confirm := range c.received {
		if confirm.RequestID == requestID {
			matched = append(matched, confirm)
		}
	}
	return matched
}
