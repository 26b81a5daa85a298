package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/sentinel/internal/logger"
)

// DefaultBufferSize is the capacity of the event channel.
const DefaultBufferSize = 256

// Bus is an async pub/sub for entity events. Publish never blocks: events go
// to a buffered channel drained by a single worker, and are dropped when the
// buffer is full.
type Bus struct {
	handlers []Handler
	mu       sync.RWMutex
	eventCh  chan *EntityEvent
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
	log      logger.Logger
}

var _ Publisher = (*Bus)(nil)

// NewBus creates a bus and starts its worker. Stop must be called to release
// the worker goroutine.
func NewBus(bufferSize int, log logger.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	b := &Bus{
		eventCh: make(chan *EntityEvent, bufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		log:     log.Module("events"),
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an event. Events published after Stop are discarded.
func (b *Bus) Publish(event *EntityEvent) {
	select {
	case <-b.stopCh:
		return
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	default:
		if n := b.dropped.Add(1); n == 1 || n%100 == 0 {
			b.log.Warn("event buffer full, dropping events", logger.Uint64("dropped_total", n))
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Stop drains queued events and waits for the worker to exit. Safe to call
// multiple times.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.doneCh
}

func (b *Bus) processLoop() {
	defer close(b.doneCh)
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event *EntityEvent) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall keeps the worker alive when a handler panics.
func (b *Bus) safeCall(handler Handler, event *EntityEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				logger.String("resource", event.Resource),
				logger.String("type", string(event.Type)),
				logger.Any("panic", r))
		}
	}()
	handler(event)
}
