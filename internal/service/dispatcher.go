package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// dispatcher serializes jobs per conversation while letting distinct
// conversations run concurrently. Each key gets a FIFO queue drained by a
// single goroutine that exits when the queue empties.
type dispatcher struct {
	mu      sync.Mutex
	queues  map[uuid.UUID][]func()
	running map[uuid.UUID]bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		queues:  make(map[uuid.UUID][]func()),
		running: make(map[uuid.UUID]bool),
	}
}

func (d *dispatcher) enqueue(key uuid.UUID, job func()) {
	d.mu.Lock()
	d.queues[key] = append(d.queues[key], job)
	if !d.running[key] {
		d.running[key] = true
		go d.drain(key)
	}
	d.mu.Unlock()
}

func (d *dispatcher) drain(key uuid.UUID) {
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			d.running[key] = false
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		job := queue[0]
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		job()
	}
}

// inflightRegistry tracks cancel functions of running generations per
// websocket session so a disconnect aborts that session's work and nothing
// else. The same user's other connections keep their streams.
type inflightRegistry struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]map[uuid.UUID]context.CancelFunc
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{
		jobs: make(map[uuid.UUID]map[uuid.UUID]context.CancelFunc),
	}
}

func (r *inflightRegistry) register(sessionId uuid.UUID, cancel context.CancelFunc) uuid.UUID {
	jobId := uuid.New()
	r.mu.Lock()
	if r.jobs[sessionId] == nil {
		r.jobs[sessionId] = make(map[uuid.UUID]context.CancelFunc)
	}
	r.jobs[sessionId][jobId] = cancel
	r.mu.Unlock()
	return jobId
}

func (r *inflightRegistry) unregister(sessionId, jobId uuid.UUID) {
	r.mu.Lock()
	if jobs, ok := r.jobs[sessionId]; ok {
		delete(jobs, jobId)
		if len(jobs) == 0 {
			delete(r.jobs, sessionId)
		}
	}
	r.mu.Unlock()
}

func (r *inflightRegistry) cancelAll(sessionId uuid.UUID) {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.jobs[sessionId]))
	for _, cancel := range r.jobs[sessionId] {
		cancels = append(cancels, cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
