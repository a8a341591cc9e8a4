package delayqueue

import "time"

// Message is one scheduled unit of work.
type Message struct {
	// ID is unique within a topic and is the dedup key.
	ID string
	// Delay is the requested visibility delay in milliseconds.
	Delay int64
	// TTL is how long, in seconds, the body may outlive its creation before
	// the pool extension is added.
	TTL int64
	// Body is opaque to the queue.
	Body []byte
	// CreateTime is the enqueue time in epoch milliseconds.
	CreateTime int64
}

// VisibleAt is the index score: the epoch millisecond the message becomes due.
func (m Message) VisibleAt() int64 {
	return m.CreateTime + m.Delay
}

// Due reports whether the message is visible at nowMs.
func (m Message) Due(nowMs int64) bool {
	return m.VisibleAt() <= nowMs
}

// newMessage fills in timing. TTL is the delay rounded up to whole seconds
// plus grace, so a body always outlives its visible time by at least grace.
func newMessage(id string, delay time.Duration, body []byte, now time.Time, grace time.Duration) Message {
	if delay < 0 {
		delay = 0
	}
	delaySec := int64((delay + time.Second - 1) / time.Second)
	return Message{
		ID:         id,
		Delay:      delay.Milliseconds(),
		TTL:        delaySec + int64(grace/time.Second),
		Body:       body,
		CreateTime: now.UnixMilli(),
	}
}
