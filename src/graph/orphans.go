package graph

import (
	"time"
)

// orphan is an event received before one or more of its parents.
type orphan struct {
	event   *Event
	missing map[string]struct{}
	added   time.Time
}

// orphanPool buffers events whose parents are not yet known, keyed by the
// missing parent ids. It is bounded by count and age so that adversarial or
// buggy peers cannot grow it without limit. Not self-locking; guarded by the
// Graph lock.
type orphanPool struct {
	limit int
	ttl   time.Duration

	byID     map[string]*orphan
	byParent map[string]map[string]*orphan

	// fifo records insertion order for capacity eviction.
	fifo []string
}

func newOrphanPool(limit int, ttl time.Duration) *orphanPool {
	return &orphanPool{
		limit:    limit,
		ttl:      ttl,
		byID:     make(map[string]*orphan),
		byParent: make(map[string]map[string]*orphan),
	}
}

// add buffers an event waiting for the given missing parents. If the pool is
// full, the oldest orphan is dropped and returned so the caller can log it.
func (p *orphanPool) add(event *Event, missing []string, now time.Time) (dropped *Event) {
	id := event.Hex()
	if _, ok := p.byID[id]; ok {
		return nil
	}

	if p.limit > 0 && len(p.byID) >= p.limit {
		dropped = p.evictOldest()
	}

	o := &orphan{
		event:   event,
		missing: make(map[string]struct{}, len(missing)),
		added:   now,
	}

	for _, parent := range missing {
		o.missing[parent] = struct{}{}

		waiting, ok := p.byParent[parent]
		if !ok {
			waiting = make(map[string]*orphan)
			p.byParent[parent] = waiting
		}
		waiting[id] = o
	}

	p.byID[id] = o
	p.fifo = append(p.fifo, id)

	return dropped
}

// release resolves the given parent id and returns the events whose
// dependencies are now complete, ready for insertion.
func (p *orphanPool) release(parent string) []*Event {
	waiting, ok := p.byParent[parent]
	if !ok {
		return nil
	}
	delete(p.byParent, parent)

	var ready []*Event
	for id, o := range waiting {
		delete(o.missing, parent)
		if len(o.missing) == 0 {
			p.drop(id)
			ready = append(ready, o.event)
		}
	}

	return ready
}

// sweep drops orphans older than the pool's ttl and returns them for logging.
func (p *orphanPool) sweep(now time.Time) []*Event {
	if p.ttl <= 0 {
		return nil
	}

	var expired []*Event
	for id, o := range p.byID {
		if now.Sub(o.added) > p.ttl {
			expired = append(expired, o.event)
			p.drop(id)
		}
	}

	return expired
}

// len returns the number of buffered orphans.
func (p *orphanPool) len() int {
	return len(p.byID)
}

func (p *orphanPool) evictOldest() *Event {
	for len(p.fifo) > 0 {
		id := p.fifo[0]
		p.fifo = p.fifo[1:]
		if o, ok := p.byID[id]; ok {
			p.drop(id)
			return o.event
		}
	}
	return nil
}

// drop removes an orphan from every index.
func (p *orphanPool) drop(id string) {
	o, ok := p.byID[id]
	if !ok {
		return
	}

	delete(p.byID, id)

	for parent := range o.missing {
		if waiting, ok := p.byParent[parent]; ok {
			delete(waiting, id)
			if len(waiting) == 0 {
				delete(p.byParent, parent)
			}
		}
	}
}
