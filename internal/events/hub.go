package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"modelkeep/internal/logging"
)

// Level classifies a hub message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Message is one event delivered to subscribers.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"msg"`
}

// Frame is one unit on a subscriber channel: either a message or a liveness
// ping. The SSE layer renders pings as comments, not data.
type Frame struct {
	Ping bool
	Msg  Message
}

// Subscriber is one live connection registered with the Hub.
type Subscriber struct {
	ch chan Frame
}

// C returns the subscriber's receive channel. It is closed when the hub drops
// the subscriber.
func (s *Subscriber) C() <-chan Frame {
	return s.ch
}

const (
	subscriberBuffer    = 10
	defaultPingInterval = 10 * time.Second
)

// Hub broadcasts messages to every registered subscriber.
type Hub struct {
	logger       *slog.Logger
	pingInterval time.Duration

	mu   sync.Mutex
	subs map[*Subscriber]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes hub construction.
type Option func(*Hub)

// WithPingInterval overrides the liveness probe interval.
func WithPingInterval(interval time.Duration) Option {
	return func(h *Hub) {
		if interval > 0 {
			h.pingInterval = interval
		}
	}
}

// New constructs a hub. Call Start to run the liveness probe loop.
func New(logger *slog.Logger, opts ...Option) *Hub {
	hub := &Hub{
		logger:       logging.WithComponent(logger, "events"),
		pingInterval: defaultPingInterval,
		subs:         make(map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(hub)
	}
	return hub
}

// Start launches the periodic liveness probe. The loop exits when ctx is
// cancelled or Stop is called.
func (h *Hub) Start(ctx context.Context) {
	probeCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-probeCtx.Done():
				return
			case <-ticker.C:
				h.probe()
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to finish.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.wg.Wait()
}

// Subscribe registers a new subscriber. The first frame on its channel is a
// "connected" greeting.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Frame, subscriberBuffer)}
	sub.ch <- Frame{Msg: Message{Level: LevelInfo, Text: "connected"}}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call for a
// subscriber the hub already dropped.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

// dropLocked removes sub and closes its channel. Caller holds h.mu; sends in
// deliver happen under the same lock, so a close can never race a send.
func (h *Hub) dropLocked(sub *Subscriber) {
	if _, present := h.subs[sub]; !present {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// SubscriberCount reports how many subscribers are currently registered.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers a message to every subscriber. Delivery is at most once
// and in publish order per subscriber; a subscriber that cannot accept the
// frame is dropped.
func (h *Hub) Publish(msg Message) {
	h.deliver(Frame{Msg: msg})
}

// Info publishes an informational message and logs it.
func (h *Hub) Info(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	h.logger.Info(text)
	h.Publish(Message{Level: LevelInfo, Text: text})
}

// Warn publishes a warning message and logs it.
func (h *Hub) Warn(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	h.logger.Warn(text)
	h.Publish(Message{Level: LevelWarn, Text: text})
}

// Error publishes an error message and logs it.
func (h *Hub) Error(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	h.logger.Error(text)
	h.Publish(Message{Level: LevelError, Text: text})
}

// probe sends a ping frame to every subscriber, evicting the ones whose
// channels are full. Bounds memory growth from abandoned connections.
func (h *Hub) probe() {
	h.deliver(Frame{Ping: true})
}

// deliver fans the frame out under h.mu. The sends are non-blocking, so the
// critical section stays bounded by the subscriber count.
func (h *Hub) deliver(frame Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stale []*Subscriber
	for sub := range h.subs {
		select {
		case sub.ch <- frame:
		default:
			stale = append(stale, sub)
		}
	}

	if len(stale) == 0 {
		return
	}
	for _, sub := range stale {
		h.dropLocked(sub)
	}
	h.logger.Debug("dropped stale subscribers", logging.Int("count", len(stale)))
}
