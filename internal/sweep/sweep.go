// Package sweep reclaims abandoned media batches. A cron-driven pass walks
// the conversation store and resets any batch whose last activity is older
// than the configured TTL. Resets run as bus tasks so they are serialized
// with every other state mutation; replacement tables and language settings
// are never touched.
package sweep

import (
	"fmt"
	"log/slog"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/abraxas0001/Caption-Master-Pro/internal/bus"
	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
)

type Sweeper struct {
	scheduler *robfigcron.Cron
	events    *bus.EventBus
	convs     *conv.Store
	ttl       time.Duration
}

// New builds a Sweeper firing on the given cron schedule (robfig/cron
// syntax, e.g. "@every 10m").
func New(schedule string, ttl time.Duration, convs *conv.Store, events *bus.EventBus) (*Sweeper, error) {
	s := &Sweeper{
		scheduler: robfigcron.New(),
		events:    events,
		convs:     convs,
		ttl:       ttl,
	}
	if _, err := s.scheduler.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the sweep scheduler.
func (s *Sweeper) Start() {
	s.scheduler.Start()
}

// Stop stops the sweep scheduler.
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

// Sweep enqueues a reset check for every tracked conversation. The check
// itself runs on the engine loop; reading state here would race with it.
func (s *Sweeper) Sweep() {
	cutoff := time.Now().Add(-s.ttl)
	for _, st := range s.convs.All() {
		st := st
		s.events.Publish(bus.Event{
			Type:   bus.EventTask,
			ChatID: st.ID,
			Task: func() {
				if len(st.Items) == 0 && st.Dialog == nil {
					return
				}
				if st.LastActivity.After(cutoff) {
					return
				}
				slog.Info("sweeping abandoned batch", "chatID", st.ID, "items", len(st.Items))
				st.ClearBatch()
			},
		})
	}
}
