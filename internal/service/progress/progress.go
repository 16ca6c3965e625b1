// Package progress multiplexes the per-stage progress feeds of an
// export job into a single ordered event stream with fan-out to
// subscribers.
package progress

import (
	"log/slog"
	"sync"

	"github.com/ChadR23/sentry-six/internal/models"
)

// Kind tags which stage an event reports on.
type Kind string

const (
	KindProgress          Kind = "progress"
	KindDashboardProgress Kind = "dashboardProgress"
	KindMinimapProgress   Kind = "minimapProgress"
	KindComplete          Kind = "complete"
)

// Message is a human-readable progress message. Either Text is set, or
// Key references a translation table entry with optional parameters.
type Message struct {
	Text   string            `json:"text,omitempty"`
	Key    string            `json:"key,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Event is one entry of a job's ordered progress stream.
type Event struct {
	JobID   string  `json:"job_id"`
	Seq     uint64  `json:"seq"`
	Kind    Kind    `json:"kind"`
	Percent float64 `json:"percent"`
	Message Message `json:"message,omitempty"`

	// Error categorizes a failed terminal event; empty on success.
	Error models.ErrorKind `json:"error,omitempty"`
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete
}

// subscriberBuffer bounds each subscriber's channel. A consumer that
// stalls past the buffer loses intermediate events but always receives
// the terminal event.
const subscriberBuffer = 64

// Stream is one job's ordered event feed. Events carry a monotonically
// increasing sequence number assigned under the stream lock, so every
// subscriber observes the same order.
type Stream struct {
	jobID  string
	logger *slog.Logger

	mu     sync.Mutex
	seq    uint64
	subs   map[int]chan Event
	nextID int
	last   *Event
	closed bool
}

func newStream(jobID string, logger *slog.Logger) *Stream {
	return &Stream{
		jobID:  jobID,
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// Publish appends an event to the stream. Events published after the
// terminal event are dropped.
func (s *Stream) Publish(kind Kind, percent float64, msg Message, errKind models.ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.seq++
	ev := Event{JobID: s.jobID, Seq: s.seq, Kind: kind, Percent: percent, Message: msg, Error: errKind}
	s.last = &ev

	for id, ch := range s.subs {
		if ev.Terminal() {
			// Terminal delivery must not be lost; a full buffer drops
			// the oldest pending event instead.
			for {
				select {
				case ch <- ev:
				default:
					select {
					case <-ch:
					default:
					}
					continue
				}
				break
			}
			close(ch)
			delete(s.subs, id)
			continue
		}
		select {
		case ch <- ev:
		default:
			s.logger.Debug("slow progress subscriber, dropping event", "job_id", s.jobID, "seq", ev.Seq)
		}
	}

	if ev.Terminal() {
		s.closed = true
	}
}

// Subscribe returns a channel of events and an unsubscribe function.
// A subscriber joining after the terminal event receives it immediately
// and a closed channel.
func (s *Stream) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		if s.last != nil {
			ch <- *s.last
		}
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Last returns the most recent event, or nil before the first publish.
func (s *Stream) Last() *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Hub tracks the stream of every known job. Streams for different jobs
// are fully independent.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]*Stream
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		streams: make(map[string]*Stream),
		logger:  logger.With("component", "progress"),
	}
}

// Stream returns the stream for a job, creating it on first use.
func (h *Hub) Stream(jobID string) *Stream {
	h.mu.RLock()
	s, ok := h.streams[jobID]
	h.mu.RUnlock()
	if ok {
		return s
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.streams[jobID]; ok {
		return s
	}
	s = newStream(jobID, h.logger)
	h.streams[jobID] = s
	return s
}

// Remove drops a terminated job's stream.
func (h *Hub) Remove(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, jobID)
}
