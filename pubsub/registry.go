package pubsub

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

type subscriberState int32

const (
	stateCreated subscriberState = iota
	stateStarted
	stateClosed
)

func (s subscriberState) String() string {
	switch s {
	case stateCreated:
		return "CREATED"
	case stateStarted:
		return "STARTED"
	case stateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// subscriberEntry is the type-erased view of a Subscriber the bus works with.
type subscriberEntry struct {
	name  string
	topic string
	state atomic.Int32
	keyOf func(payload any) string
	run   func(ctx context.Context, d *delivery)

	mu     sync.Mutex
	health SubscriberHealth
}

func (e *subscriberEntry) loadState() subscriberState {
	return subscriberState(e.state.Load())
}

func (e *subscriberEntry) started() bool {
	return e.loadState() == stateStarted
}

func (e *subscriberEntry) record(fn func(h *SubscriberHealth)) {
	e.mu.Lock()
	fn(&e.health)
	e.health.LastActivity = time.Now()
	e.mu.Unlock()
}

func (e *subscriberEntry) snapshot() SubscriberHealth {
	e.mu.Lock()
	h := e.health
	e.mu.Unlock()
	h.Name = e.name
	h.Topic = e.topic
	h.State = e.loadState().String()
	return h
}

// registry binds names to live handles. Each map has its own lock so lookups
// during dispatch never wait on unrelated registrations.
type registry struct {
	topicsMu sync.RWMutex
	topics   map[string]struct{}

	subscriptionsMu sync.RWMutex
	subscriptions   map[string]string

	publishersMu sync.RWMutex
	publishers   map[string]struct{}

	subscribersMu sync.RWMutex
	subscribers   map[string]*subscriberEntry
}

func newRegistry() *registry {
	return &registry{
		topics:        map[string]struct{}{},
		subscriptions: map[string]string{},
		publishers:    map[string]struct{}{},
		subscribers:   map[string]*subscriberEntry{},
	}
}

func (r *registry) registerTopic(name string) {
	r.topicsMu.Lock()
	r.topics[name] = struct{}{}
	r.topicsMu.Unlock()
}

// registerSubscription binds a subscription name to its topic. Binding the
// same name to the same topic again is allowed.
func (r *registry) registerSubscription(name, topic string) error {
	r.subscriptionsMu.Lock()
	defer r.subscriptionsMu.Unlock()
	if bound, ok := r.subscriptions[name]; ok && bound != topic {
		return fmt.Errorf("%w: subscription %q is bound to topic %q", ErrRegistrationConflict, name, bound)
	}
	r.subscriptions[name] = topic
	return nil
}

func (r *registry) registerPublisher(topic string) error {
	r.publishersMu.Lock()
	defer r.publishersMu.Unlock()
	if _, ok := r.publishers[topic]; ok {
		return fmt.Errorf("%w: topic %q already has a publisher", ErrRegistrationConflict, topic)
	}
	r.publishers[topic] = struct{}{}
	return nil
}

func (r *registry) unregisterPublisher(topic string) {
	r.publishersMu.Lock()
	delete(r.publishers, topic)
	r.publishersMu.Unlock()
}

func (r *registry) registerSubscriber(e *subscriberEntry) error {
	r.subscribersMu.Lock()
	defer r.subscribersMu.Unlock()
	if _, ok := r.subscribers[e.name]; ok {
		return fmt.Errorf("%w: subscription %q already has a subscriber", ErrRegistrationConflict, e.name)
	}
	r.subscribers[e.name] = e
	return nil
}

// unregisterSubscriber removes e only if it is still the bound handle.
func (r *registry) unregisterSubscriber(e *subscriberEntry) {
	r.subscribersMu.Lock()
	if r.subscribers[e.name] == e {
		delete(r.subscribers, e.name)
	}
	r.subscribersMu.Unlock()
}

func (r *registry) subscriber(name string) *subscriberEntry {
	r.subscribersMu.RLock()
	defer r.subscribersMu.RUnlock()
	return r.subscribers[name]
}

// started returns the started subscribers of topic ordered by name.
func (r *registry) started(topic string) []*subscriberEntry {
	r.subscribersMu.RLock()
	out := lo.Filter(lo.Values(r.subscribers), func(e *subscriberEntry, _ int) bool {
		return e.topic == topic && e.started()
	})
	r.subscribersMu.RUnlock()
	slices.SortFunc(out, byName)
	return out
}

func (r *registry) hasStarted(topic string) bool {
	r.subscribersMu.RLock()
	defer r.subscribersMu.RUnlock()
	for _, e := range r.subscribers {
		if e.topic == topic && e.started() {
			return true
		}
	}
	return false
}

func (r *registry) topicNames() []string {
	r.topicsMu.RLock()
	names := lo.Keys(r.topics)
	r.topicsMu.RUnlock()
	slices.Sort(names)
	return names
}

func (r *registry) publisherTopics() []string {
	r.publishersMu.RLock()
	names := lo.Keys(r.publishers)
	r.publishersMu.RUnlock()
	slices.Sort(names)
	return names
}

func (r *registry) subscriberEntries() []*subscriberEntry {
	r.subscribersMu.RLock()
	entries := lo.Values(r.subscribers)
	r.subscribersMu.RUnlock()
	slices.SortFunc(entries, byName)
	return entries
}

func byName(a, b *subscriberEntry) int {
	return cmp.Compare(a.name, b.name)
}
