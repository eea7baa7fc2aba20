package graph

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/jewelry-concierge/server/internal/agent/graph/nodes"
	"github.com/jewelry-concierge/server/internal/agent/model"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

// Stream runs the graph and emits its progress as events: per completed
// handler a status event and the reply as token chunks, then one metadata
// event and exactly one terminal done or error event. The channel is closed
// after the terminal event.
func (o *Orchestrator) Stream(ctx context.Context, req model.Request) <-chan model.Event {
	out := make(chan model.Event, o.cfg.Stream.Buffer)
	em := newEmitter(ctx, out, o.cfg.Stream.ChunkSize)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logx.FromContext(ctx).Error().Str("panic", fmt.Sprint(r)).Msg("stream run panicked")
				em.fail(errx.SystemErrorMessage)
			}
		}()

		runCtx := o.runContext(ctx, req)
		req := o.conversations.Prepare(runCtx, req)

		resp, finished := o.invoke(nodes.WithObserver(runCtx, em), req)
		if resp.Status != model.StatusError {
			o.conversations.Record(runCtx, req, resp)
		}
		em.finish(resp, finished)
	}()
	return out
}

// emitter turns handler completions into events. Completions are queued
// and a pump goroutine delivers them, so a slow consumer never holds up the
// graph. Everything after the terminal event is dropped, including
// completions of a run that already timed out.
type emitter struct {
	ctx   context.Context
	out   chan<- model.Event
	chunk int
	wake  chan struct{}

	mu     sync.Mutex
	queue  []model.Event
	meta   map[string]any
	closed bool
}

func newEmitter(ctx context.Context, out chan<- model.Event, chunk int) *emitter {
	if chunk <= 0 {
		chunk = 3
	}
	e := &emitter{ctx: ctx, out: out, chunk: chunk, wake: make(chan struct{}, 1), meta: map[string]any{}}
	go e.pump()
	return e
}

func (e *emitter) HandlerCompleted(_ context.Context, h model.HandlerID, r model.Result) {
	chunks := Chunks(r.Reply, e.chunk)
	evs := make([]model.Event, 0, len(chunks)+1)
	evs = append(evs, model.Event{Type: model.EventStatus, Handler: h, Content: h.Label()})
	for _, c := range chunks {
		evs = append(evs, model.Event{Type: model.EventToken, Handler: h, Content: c})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	maps.Copy(e.meta, r.Meta)
	e.enqueue(false, evs...)
}

// finish queues the metadata event and the terminal event for resp. A run
// that never reached finalize only gets the error event.
func (e *emitter) finish(resp model.Response, finished bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	if finished {
		data := maps.Clone(e.meta)
		data["completed_agents"] = resp.CompletedAgents
		data["task_type"] = resp.TaskType
		data["status"] = resp.Status
		e.enqueue(false, model.Event{Type: model.EventMetadata, Data: data})
	}

	if resp.Status == model.StatusError {
		e.enqueue(true, model.Event{Type: model.EventError, Content: resp.Error})
		return
	}
	e.enqueue(true, model.Event{Type: model.EventDone, Data: map[string]any{"status": resp.Status}})
}

func (e *emitter) fail(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.enqueue(true, model.Event{Type: model.EventError, Content: msg})
}

// enqueue must be called with mu held.
func (e *emitter) enqueue(terminal bool, evs ...model.Event) {
	e.queue = append(e.queue, evs...)
	e.closed = terminal
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// pump delivers queued events in order and closes out after the terminal
// event, or as soon as the consumer goes away.
func (e *emitter) pump() {
	defer close(e.out)
	for {
		e.mu.Lock()
		batch, done := e.queue, e.closed
		e.queue = nil
		e.mu.Unlock()

		for _, ev := range batch {
			select {
			case e.out <- ev:
			case <-e.ctx.Done():
				return
			}
		}
		if done {
			return
		}
		if len(batch) == 0 {
			select {
			case <-e.wake:
			case <-e.ctx.Done():
				return
			}
		}
	}
}

// Chunks splits s into pieces of size runes. An empty s has no chunks.
func Chunks(s string, size int) []string {
	if size <= 0 {
		size = 1
	}
	r := []rune(s)
	out := make([]string, 0, (len(r)+size-1)/size)
	for i := 0; i < len(r); i += size {
		out = append(out, string(r[i:min(i+size, len(r))]))
	}
	return out
}

var _ nodes.Observer = (*emitter)(nil)
