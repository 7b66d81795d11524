// Package progress fans out a single job's orchestration events to however
// many subscribers are currently watching it, over SSE or websocket
// transports alike.
package progress

import (
	"sync"

	"github.com/smilemakc/floorplan/pkg/models"
)

const subscriberBuffer = 64

// Sink is whatever a transport adapter uses to push one event to its
// client: an SSE response writer, a websocket connection, or (in tests) an
// in-memory recorder.
type Sink interface {
	Send(event models.ProgressEvent) error
}

// Hub owns the per-job subscriber sets. It is safe for concurrent use: the
// owning orchestrator broadcasts from one goroutine per job, while
// transport handlers subscribe/unsubscribe from arbitrary goroutines.
type Hub struct {
	mu   sync.Mutex
	jobs map[string]*jobTopic
}

// New builds an empty Hub.
func New() *Hub {
	return &Hub{jobs: make(map[string]*jobTopic)}
}

type jobTopic struct {
	mu          sync.Mutex
	subscribers map[int64]*subscription
	nextID      int64
	terminal    *models.ProgressEvent
}

type subscription struct {
	buf  chan models.ProgressEvent
	done chan struct{}
}

func isTerminal(t models.ProgressEventType) bool {
	return t == models.EventCompleted || t == models.EventError
}

// Subscribe registers sink to receive every subsequent event broadcast for
// jobId. If jobId has already reached a terminal state, sink instead
// receives a single synthesized replay of that terminal event and the
// returned unsubscribe is a no-op.
func (h *Hub) Subscribe(jobId string, sink Sink) (unsubscribe func()) {
	h.mu.Lock()
	topic, ok := h.jobs[jobId]
	if !ok {
		topic = &jobTopic{subscribers: make(map[int64]*subscription)}
		h.jobs[jobId] = topic
	}
	h.mu.Unlock()

	topic.mu.Lock()
	if topic.terminal != nil {
		terminal := *topic.terminal
		topic.mu.Unlock()
		_ = sink.Send(terminal)
		return func() {}
	}

	id := topic.nextID
	topic.nextID++
	sub := &subscription{buf: make(chan models.ProgressEvent, subscriberBuffer), done: make(chan struct{})}
	topic.subscribers[id] = sub
	topic.mu.Unlock()

	go pump(sub, sink)

	return func() {
		h.unsubscribe(jobId, topic, id)
	}
}

func (h *Hub) unsubscribe(jobId string, topic *jobTopic, id int64) {
	topic.mu.Lock()
	sub, ok := topic.subscribers[id]
	if ok {
		delete(topic.subscribers, id)
	}
	empty := len(topic.subscribers) == 0 && topic.terminal == nil
	topic.mu.Unlock()

	if ok {
		close(sub.done)
	}
	if empty {
		h.mu.Lock()
		if current, exists := h.jobs[jobId]; exists && current == topic {
			delete(h.jobs, jobId)
		}
		h.mu.Unlock()
	}
}

func pump(sub *subscription, sink Sink) {
	for {
		select {
		case event, ok := <-sub.buf:
			if !ok {
				return
			}
			if sink.Send(event) != nil {
				// Transport write failed: drop this subscriber silently, the
				// run is unaffected.
				return
			}
		case <-sub.done:
			return
		}
	}
}

// Broadcast delivers event to every current subscriber of jobId, in the
// order Broadcast is called (the orchestrator calls it from a single
// goroutine per job, so this is also emission order). A subscriber whose
// buffer is full is dropped rather than allowed to block the others.
// A terminal event (completed/error) is recorded for later replay, sent to
// every current subscriber, and those subscribers are then closed.
func (h *Hub) Broadcast(jobId string, event models.ProgressEvent) {
	h.mu.Lock()
	topic, ok := h.jobs[jobId]
	if !ok {
		topic = &jobTopic{subscribers: make(map[int64]*subscription)}
		h.jobs[jobId] = topic
	}
	h.mu.Unlock()

	topic.mu.Lock()
	defer topic.mu.Unlock()

	terminal := isTerminal(event.Type)
	if terminal {
		copyEvent := event
		topic.terminal = &copyEvent
	}

	for id, sub := range topic.subscribers {
		select {
		case sub.buf <- event:
		default:
			delete(topic.subscribers, id)
			close(sub.done)
			continue
		}
		if terminal {
			close(sub.buf)
			delete(topic.subscribers, id)
		}
	}
}

// Forget drops all retained state for jobId, including any recorded
// terminal event. Callers should invoke this when the job store evicts the
// corresponding job.
func (h *Hub) Forget(jobId string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.jobs, jobId)
}
