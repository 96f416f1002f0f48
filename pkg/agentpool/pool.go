// Package agentpool keeps a bounded, LRU-evicted pool of live agent engine
// instances shared by all sessions.
package agentpool

import (
	"container/list"
	"fmt"
	"sync"

	"ai-agent-gateway/pkg/agent"
)

// DefaultCapacity matches the instance cache size the platform has always run with.
const DefaultCapacity = 50

// Constructor builds a fresh engine for an agent ID. Injected so the pool
// stays decoupled from descriptor loading and provider wiring.
type Constructor func(agentID string) (*agent.Engine, error)

type entry struct {
	agentID string
	engine  *agent.Engine
}

// Pool is safe for concurrent use; all LRU bookkeeping happens under one lock.
type Pool struct {
	mu        sync.Mutex
	capacity  int
	construct Constructor
	entries   map[string]*list.Element
	order     *list.List // front = most recently used
}

func New(capacity int, construct Constructor) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity:  capacity,
		construct: construct,
		entries:   make(map[string]*list.Element),
		order:     list.New(),
	}
}

// Acquire returns the pooled engine for agentID, constructing and inserting
// it on miss. A hit refreshes the entry's recency; an insert beyond capacity
// evicts the least-recently-used engine.
func (p *Pool) Acquire(agentID string) (*agent.Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.entries[agentID]; ok {
		p.order.MoveToFront(el)
		return el.Value.(*entry).engine, nil
	}

	engine, err := p.construct(agentID)
	if err != nil {
		return nil, fmt.Errorf("construct engine for %q: %w", agentID, err)
	}

	if p.order.Len() >= p.capacity {
		oldest := p.order.Back()
		if oldest != nil {
			p.order.Remove(oldest)
			delete(p.entries, oldest.Value.(*entry).agentID)
		}
	}

	p.entries[agentID] = p.order.PushFront(&entry{agentID: agentID, engine: engine})
	return engine, nil
}

// Len returns the number of pooled engines.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// Contains reports whether an engine for agentID is currently pooled,
// without touching recency.
func (p *Pool) Contains(agentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[agentID]
	return ok
}
