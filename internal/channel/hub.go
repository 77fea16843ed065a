// Package channel is an in-process stand-in for a browser broadcast channel:
// named channels that carry authorization results from the redirect landing
// page back to the attempt that is waiting for them.
package channel

import (
	"log/slog"
	"sync"
)

// LoginChannel is the channel name the landing page publishes on.
const LoginChannel = "oauthLoginChannel"

// subscriptionBuffer bounds how many undelivered messages a subscriber holds.
const subscriptionBuffer = 4

// Message is what the landing page posts after the provider redirect.
type Message struct {
	Origin           string // scheme://host of the context that posted the message
	State            string // correlation token echoed by the provider
	Code             string
	Error            string
	ErrorDescription string
}

// Hub routes messages to subscribers by channel name.
type Hub struct {
	log *slog.Logger

	mu   sync.Mutex
	seq  uint64
	subs map[string][]*Subscription
}

// NewHub returns an empty hub. A nil logger uses slog.Default().
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:  log,
		subs: make(map[string][]*Subscription),
	}
}

// Subscription receives messages published on one channel name.
type Subscription struct {
	hub   *Hub
	name  string
	token string
	seq   uint64
	ch    chan Message
	once  sync.Once
}

// C returns the delivery channel. It is never closed; use Unsubscribe.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Unsubscribe removes the subscription from its hub. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Subscribe registers a listener on name. A non-empty token restricts
// delivery to messages whose State equals it; an empty token accepts any
// uncorrelated message, with the most recent registration winning.
func (h *Hub) Subscribe(name, token string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	sub := &Subscription{
		hub:   h,
		name:  name,
		token: token,
		seq:   h.seq,
		ch:    make(chan Message, subscriptionBuffer),
	}
	h.subs[name] = append(h.subs[name], sub)
	return sub
}

// Publish delivers msg to exactly one subscriber on name and reports
// whether anyone received it.
func (h *Hub) Publish(name string, msg Message) bool {
	h.mu.Lock()
	target := h.pick(name, msg.State)
	h.mu.Unlock()

	if target == nil {
		h.log.Warn("dropping message with no listener", "channel", name, "origin", msg.Origin)
		return false
	}

	select {
	case target.ch <- msg:
		return true
	default:
		h.log.Warn("listener buffer full, dropping message", "channel", name)
		return false
	}
}

// Listeners returns the number of live subscriptions on name.
func (h *Hub) Listeners(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[name])
}

// pick must be called with h.mu held.
func (h *Hub) pick(name, state string) *Subscription {
	var latest *Subscription
	for _, s := range h.subs[name] {
		if s.token != "" {
			if state != "" && s.token == state {
				return s
			}
			continue
		}
		if latest == nil || s.seq > latest.seq {
			latest = s
		}
	}
	return latest
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.subs[s.name]
	for i, cur := range list {
		if cur == s {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.subs, s.name)
		return
	}
	h.subs[s.name] = list
}
