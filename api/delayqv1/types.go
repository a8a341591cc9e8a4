// Package delayqv1 defines the DelayQueue gRPC service: its messages, the
// service descriptor, and a client stub. Messages travel as JSON.
package delayqv1

// PushRequest schedules Body on Topic. A nil DelayMs means the server's
// default delay; an empty Id means a generated one.
type PushRequest struct {
	Topic   string `json:"topic"`
	Id      string `json:"id,omitempty"`
	DelayMs *int64 `json:"delay_ms,omitempty"`
	Body    []byte `json:"body"`
}

// PushResponse carries the id the message was scheduled under. It is empty
// when the body was empty and nothing was scheduled.
type PushResponse struct {
	Id string `json:"id"`
}

// PopRequest asks for up to BatchSize due bodies. Zero means the server default.
type PopRequest struct {
	Topic     string `json:"topic"`
	BatchSize int32  `json:"batch_size,omitempty"`
}

type PopResponse struct {
	Bodies [][]byte `json:"bodies"`
}

type CancelRequest struct {
	Topic string `json:"topic"`
	Id    string `json:"id"`
}

type CancelResponse struct{}

type StatsRequest struct {
	Topic string `json:"topic"`
}

// StatsResponse reports the topic's index size, how many entries are due, and
// per-outcome counters accumulated by this server process.
type StatsResponse struct {
	Topic   string           `json:"topic"`
	Pending int64            `json:"pending"`
	Due     int64            `json:"due"`
	Events  map[string]int64 `json:"events,omitempty"`
}
