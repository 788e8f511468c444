package session

import (
	"time"

	"github.com/anstrom/lanscan/internal/discovery"
)

// DefaultEventCapacity is the number of events a session retains.
const DefaultEventCapacity = 100

// Event is one entry in the session log.
type Event struct {
	Sequence  uint64             `json:"sequence"`
	SessionID string             `json:"session_id"`
	Time      time.Time          `json:"time"`
	Severity  discovery.Severity `json:"severity"`
	Message   string             `json:"message"`
}

// eventRing keeps the most recent events, evicting the oldest first.
type eventRing struct {
	buf   []Event
	start int
	size  int
}

func newEventRing(capacity int) *eventRing {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &eventRing{buf: make([]Event, capacity)}
}

func (r *eventRing) add(e Event) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = e
		r.size++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// list returns the retained events, oldest first.
func (r *eventRing) list() []Event {
	out := make([]Event, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *eventRing) len() int {
	return r.size
}
