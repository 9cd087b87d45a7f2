package services

import (
	"context"
	"sync"
	"time"

	"goride/internal/models"
	"goride/pkg/logger"
)

// EventSink is a transport the router fans events out to.
type EventSink interface {
	Name() string
	Deliver(ctx context.Context, event *models.Event, channels []string) error
}

// EventPublisher is the write side used by the ride services.
type EventPublisher interface {
	Publish(event *models.Event, channels ...string)
}

type routedEvent struct {
	event    *models.Event
	channels []string
}

// EventRouter hands events to its sinks from a bounded queue drained by a
// fixed set of workers. Publish never blocks; when the queue is full the
// event is dropped.
type EventRouter struct {
	sinks       []EventSink
	queue       chan routedEvent
	workers     int
	sinkTimeout time.Duration
	logger      *logger.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewEventRouter(log *logger.Logger, queueSize, workers int, sinks ...EventSink) *EventRouter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	return &EventRouter{
		sinks:       sinks,
		queue:       make(chan routedEvent, queueSize),
		workers:     workers,
		sinkTimeout: 5 * time.Second,
		logger:      log,
	}
}

// AddSink registers a sink. It must be called before Start.
func (r *EventRouter) AddSink(sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

func (r *EventRouter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

func (r *EventRouter) Publish(event *models.Event, channels ...string) {
	if event == nil || len(channels) == 0 {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- routedEvent{event: event, channels: dedupeChannels(channels)}:
	default:
		r.logger.WithFields(map[string]interface{}{
			"event_type": event.Type,
			"ride_id":    event.RideID,
		}).Warn("Event queue full, dropping event")
	}
}

// Stop closes the queue and waits for queued events to be delivered.
func (r *EventRouter) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *EventRouter) worker(ctx context.Context) {
	defer r.wg.Done()
	for routed := range r.queue {
		r.deliver(ctx, routed)
	}
}

func (r *EventRouter) deliver(ctx context.Context, routed routedEvent) {
	r.mu.RLock()
	sinks := r.sinks
	r.mu.RUnlock()

	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sinkTimeout)
		err := sink.Deliver(sinkCtx, routed.event, routed.channels)
		cancel()
		if err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"sink":       sink.Name(),
				"event_type": routed.event.Type,
				"ride_id":    routed.event.RideID,
			}).Warn("Event delivery failed")
		}
	}
}

func dedupeChannels(channels []string) []string {
	seen := make(map[string]struct{}, len(channels))
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch == "" {
			continue
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}
