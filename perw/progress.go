package perw

import (
	"sync"

	"go.uber.org/atomic"
)

// Progress receives the number of bytes written by each completed chunk.
// Implementations must be safe for concurrent use.
type Progress interface {
	Add(n int64)
}

// Counter is a Progress that keeps a running total and forwards it to
// OnChange. OnChange calls are serialized and only ever see a growing total.
type Counter struct {
	Total    int64
	OnChange func(written, total int64)

	written atomic.Int64

	mu       sync.Mutex
	reported int64
}

func NewCounter(total int64, onChange func(written, total int64)) *Counter {
	return &Counter{Total: total, OnChange: onChange}
}

func (c *Counter) Add(n int64) {
	w := c.written.Add(n)
	if c.OnChange == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// a worker that finished later may carry an older total
	if w <= c.reported {
		return
	}
	c.reported = w
	c.OnChange(w, c.Total)
}

func (c *Counter) Written() int64 {
	return c.written.Load()
}
