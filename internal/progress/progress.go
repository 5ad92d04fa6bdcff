// Package progress carries typed progress events from the pipeline and
// the batch executor to whoever is watching: the CLI, the picker or a
// test.
package progress

import (
	"context"
	"time"
)

// Status of the step an event describes.
type Status string

const (
	StatusStarted   Status = "started"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusWarning   Status = "warning"
)

// Event is one progress notification. Current never exceeds Total.
type Event struct {
	Source  string // "pipeline", "batch" or "rnd"
	Stage   string // Stage or operation name.
	Item    string // File or artifact name, when the event is per item.
	Current int
	Total   int
	Status  Status
	Detail  string
	Time    time.Time
}

// Reporter receives events. Implementations must be safe for concurrent
// use.
type Reporter interface {
	Report(Event)
}

// Func adapts a function to Reporter.
type Func func(Event)

func (f Func) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Reporter = Func(func(Event) {})

// Channel publishes events on a buffered channel. When the buffer is
// full Report blocks until the consumer catches up or the context ends.
type Channel struct {
	ctx context.Context
	ch  chan Event
}

// NewChannel returns a Channel with the given buffer size. Events
// reported after ctx is done are dropped.
func NewChannel(ctx context.Context, buffer int) *Channel {
	return &Channel{ctx: ctx, ch: make(chan Event, buffer)}
}

// Events is the stream consumers range over.
func (c *Channel) Events() <-chan Event { return c.ch }

// Report stamps and publishes e.
func (c *Channel) Report(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case c.ch <- e:
	case <-c.ctx.Done():
	}
}

// Close ends the stream. No Report may follow.
func (c *Channel) Close() { close(c.ch) }

// Percent is Current/Total in [0,100].
func (e Event) Percent() float64 {
	if e.Total <= 0 {
		return 0
	}
	return float64(e.Current) * 100 / float64(e.Total)
}
