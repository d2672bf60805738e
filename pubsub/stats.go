package pubsub

import "time"

type Stats struct {
	Topics            []TopicStats       `json:"topics"`
	Publishers        []string           `json:"publishers"`
	Subscribers       []SubscriberHealth `json:"subscribers"`
	RedeliveryPending int                `json:"redelivery_pending"`
	InFlight          int                `json:"in_flight"`
	MaxInFlight       int                `json:"max_in_flight"`
	Closed            bool               `json:"closed"`
}

type TopicStats struct {
	Name     string `json:"name"`
	Queued   int    `json:"queued"`
	Capacity int    `json:"capacity"`
}

type SubscriberHealth struct {
	Name          string    `json:"name"`
	Topic         string    `json:"topic"`
	State         string    `json:"state"`
	Delivered     int64     `json:"delivered"`
	Acked         int64     `json:"acked"`
	Nacked        int64     `json:"nacked"`
	Failures      int64     `json:"failures"`
	LastError     string    `json:"last_error,omitempty"`
	LastMessageID string    `json:"last_message_id,omitempty"`
	LastActivity  time.Time `json:"last_activity"`
	BusyKeys      int       `json:"busy_keys"`
}

// Stats returns a point-in-time view of queues, registrations and subscriber
// health.
func (c *Client) Stats() Stats {
	s := Stats{
		Publishers:        c.reg.publisherTopics(),
		RedeliveryPending: c.redelivery.Len(),
		InFlight:          c.admission.acquired(),
		MaxInFlight:       c.admission.size,
		Closed:            c.isClosed(),
	}
	queues := c.topicQueues()
	for _, name := range c.reg.topicNames() {
		ts := TopicStats{Name: name, Capacity: c.cfg.MaxMessagesInQueue}
		if tq, ok := queues[name]; ok {
			ts.Queued = tq.q.Len()
		}
		s.Topics = append(s.Topics, ts)
	}
	for _, e := range c.reg.subscriberEntries() {
		h := e.snapshot()
		h.BusyKeys = c.guard.Count(e.name)
		s.Subscribers = append(s.Subscribers, h)
	}
	return s
}
