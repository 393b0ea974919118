package scriptapi

import "sync"

// BusFunc is a subscriber callback invoked with a topic's posted payload.
type BusFunc func(topic string, payload any)

type subscription struct {
	id    int
	topic string
	fn    BusFunc
}

type queuedPost struct {
	topic   string
	payload any
}

// Bus is the pub/sub surface exposed to scripts (spec §4.9). post()
// never delivers synchronously: every post is queued and only handed to
// subscribers when Pump is called, which the node's tick loop does once
// per tick, ahead of everything else, so delivery is FIFO and at-most-once
// per subscriber.
type Bus struct {
	mu      sync.Mutex
	nextID  int
	subs    []subscription
	pending []queuedPost
}

// NewBus constructs an empty pub/sub bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for topic and returns an id usable with
// Unsubscribe.
func (b *Bus) Subscribe(topic string, fn BusFunc) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscription{id: b.nextID, topic: topic, fn: fn})
	return b.nextID
}

// Unsubscribe removes a subscription by id, returning false if it was not
// found.
func (b *Bus) Unsubscribe(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Post enqueues payload for topic; delivery happens on the next Pump call.
func (b *Bus) Post(topic string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, queuedPost{topic: topic, payload: payload})
}

// Pump delivers every post queued since the last Pump call, in FIFO
// order, to every currently-subscribed handler for its topic.
func (b *Bus) Pump() {
	b.mu.Lock()
	posts := b.pending
	b.pending = nil
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	for _, p := range posts {
		for _, s := range subs {
			if s.topic == p.topic {
				s.fn(p.topic, p.payload)
			}
		}
	}
}
