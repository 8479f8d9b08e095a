// Package feed carries live market-data channels: a latest-value hub that
// render contexts read from, a WebSocket connector for an upstream feed, and
// a built-in simulator for demo and test use.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrInvalidPayload rejects channel data that is not a JSON object. Bindings
// address into payloads by path, so scalars and arrays have no place to hang
// fields off.
var ErrInvalidPayload = errors.New("feed: payload must be a JSON object")

// Observer is notified after a channel's latest payload changes. Observers
// run on the publishing goroutine and must not block.
type Observer func(channelKey string)

// ChannelInfo describes one populated channel.
type ChannelInfo struct {
	Key       string `json:"key"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Hub holds the most recent payload per channel key. Channels exist from the
// moment something publishes on them; there is no registration step.
type Hub struct {
	logger *slog.Logger

	mu        sync.RWMutex
	latest    map[string]json.RawMessage
	updatedAt map[string]int64
	observers map[int]Observer
	nextID    int
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:    logger,
		latest:    make(map[string]json.RawMessage),
		updatedAt: make(map[string]int64),
		observers: make(map[int]Observer),
	}
}

// Publish stores the channel's latest payload and notifies observers. The
// payload must be a JSON object; anything else returns ErrInvalidPayload and
// leaves the previous value in place.
func (h *Hub) Publish(channelKey string, payload json.RawMessage) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrInvalidPayload
	}

	own := make(json.RawMessage, len(trimmed))
	copy(own, trimmed)

	h.mu.Lock()
	h.latest[channelKey] = own
	h.updatedAt[channelKey] = time.Now().UnixMilli()
	observers := make([]Observer, 0, len(h.observers))
	for _, fn := range h.observers {
		observers = append(observers, fn)
	}
	h.mu.Unlock()

	for _, fn := range observers {
		fn(channelKey)
	}
	return nil
}

// Latest returns the most recent payload seen on the channel.
func (h *Hub) Latest(channelKey string) (json.RawMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.latest[channelKey]
	return p, ok
}

// Channels lists every populated channel in key order.
func (h *Hub) Channels() []ChannelInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ChannelInfo, 0, len(h.latest))
	for k := range h.latest {
		out = append(out, ChannelInfo{Key: k, UpdatedAt: h.updatedAt[k]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Subscribe registers an observer and returns its cancel function.
func (h *Hub) Subscribe(fn Observer) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.observers, id)
		h.mu.Unlock()
	}
}
