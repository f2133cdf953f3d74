// Package sched schedules deferred work onto the engine's event loop.
// A scheduled closure runs as a discrete later event of the same
// single-consumer queue, never concurrently with the handler that
// scheduled it.
package sched

import (
	"time"

	"github.com/abraxas0001/Caption-Master-Pro/internal/bus"
)

// CancelFunc stops a scheduled task. It reports whether the task was
// cancelled before it was enqueued.
type CancelFunc func() bool

// Scheduler defers a closure by the given delay. The closure is the sole
// authority over its captured state once scheduled.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) CancelFunc
}

// BusScheduler publishes scheduled closures as task events onto the bus,
// so they execute on the engine loop like any inbound event.
type BusScheduler struct {
	bus *bus.EventBus
}

func NewBusScheduler(b *bus.EventBus) *BusScheduler {
	return &BusScheduler{bus: b}
}

func (s *BusScheduler) Schedule(delay time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(delay, func() {
		s.bus.Publish(bus.Event{Type: bus.EventTask, Task: fn})
	})
	return t.Stop
}
