package graph

import (
	"sync"
	"time"

	cm "github.com/evergraph/evergraph/src/common"
	"github.com/sirupsen/logrus"
)

// CommitCallback is called for every event committed to the graph, in
// insertion order. It runs with the graph lock held, so deliveries from
// concurrent insertions cannot interleave; the callback must not block or
// call back into the Graph.
type CommitCallback func(*Event)

// Graph is the DAG engine. It owns the Store and the frontier, and is the
// only component that mutates them. All public operations are safe for
// concurrent use.
type Graph struct {
	Store Store

	frontier *frontier
	orphans  *orphanPool

	commitCallback CommitCallback

	lock sync.Mutex

	logger *logrus.Entry
}

// NewGraph instantiates a Graph on top of a Store. The orphan pool is bounded
// by orphanLimit events and orphanTTL age; beyond either bound orphans are
// dropped and logged.
func NewGraph(store Store,
	commitCallback CommitCallback,
	orphanLimit int,
	orphanTTL time.Duration,
	logger *logrus.Entry) *Graph {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Graph{
		Store:          store,
		frontier:       newFrontier(),
		orphans:        newOrphanPool(orphanLimit, orphanTTL),
		commitCallback: commitCallback,
		logger:         logger,
	}
}

// Bootstrap rebuilds the frontier from the Store. It must be called when the
// Store was loaded from an existing database, before any insertion.
func (g *Graph) Bootstrap() error {
	g.lock.Lock()
	defer g.lock.Unlock()

	referenced := make(map[string]struct{})

	err := g.Store.IterateEvents(func(id string, event *Event) bool {
		for _, parent := range event.Parents {
			referenced[parent] = struct{}{}
		}
		return true
	})
	if err != nil {
		return err
	}

	return g.Store.IterateEvents(func(id string, event *Event) bool {
		if _, ok := referenced[id]; !ok {
			g.frontier.add(id, event.layer)
		}
		return true
	})
}

// InsertEvents inserts a batch of events, in order. Events already present
// are skipped; events with missing parents are buffered in the orphan pool
// and committed automatically once their parents arrive. The returned ids
// mirror the input order, including duplicates and orphans. Storage errors
// are fatal and returned as-is.
func (g *Graph) InsertEvents(events ...*Event) ([]string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	now := time.Now()
	for _, expired := range g.orphans.sweep(now) {
		g.logger.WithField("event", expired.Hex()).Warn("dropping expired orphan")
	}

	ids := make([]string, 0, len(events))
	var committed []*Event

	for _, event := range events {
		id := event.Hex()
		ids = append(ids, id)

		if g.Store.ContainsEvent(id) {
			continue
		}

		done, err := g.insert(event, now)
		if err != nil {
			return nil, err
		}
		committed = append(committed, done...)
	}

	// Delivering under the lock keeps the commit order of concurrent
	// insertions; parents are always published before their children.
	if g.commitCallback != nil {
		for _, event := range committed {
			g.commitCallback(event)
		}
	}

	return ids, nil
}

// insert commits a single event and drains any orphans it completes. It is an
// iterative worklist rather than recursion so that a long orphan chain cannot
// grow the stack. Caller holds the lock.
func (g *Graph) insert(event *Event, now time.Time) ([]*Event, error) {
	var committed []*Event

	queue := []*Event{event}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		id := e.Hex()
		if g.Store.ContainsEvent(id) {
			continue
		}

		missing := []string{}
		layer := 0
		for _, parent := range e.Parents {
			pe, err := g.Store.GetEvent(parent)
			if err != nil {
				if cm.IsStore(err, cm.KeyNotFound) {
					missing = append(missing, parent)
					continue
				}
				return nil, err
			}
			if pe.layer+1 > layer {
				layer = pe.layer + 1
			}
		}

		if len(missing) > 0 {
			if dropped := g.orphans.add(e, missing, now); dropped != nil {
				g.logger.WithFields(logrus.Fields{
					"event": dropped.Hex(),
					"limit": g.orphans.limit,
				}).Warn("orphan pool full, dropping oldest")
			}
			g.logger.WithFields(logrus.Fields{
				"event":   id,
				"missing": missing,
			}).Debug("buffering orphan event")
			continue
		}

		e.layer = layer
		if err := g.Store.SetEvent(e); err != nil {
			return nil, err
		}

		for _, parent := range e.Parents {
			g.frontier.remove(parent)
		}
		g.frontier.add(id, layer)

		committed = append(committed, e)

		// Releasing an orphan may in turn complete another orphan.
		queue = append(queue, g.orphans.release(id)...)
	}

	return committed, nil
}

// SuccessorsOf returns every stored event that is not in the causal past of
// the given frontier, ascending layer order, so parents always appear before
// their children. It is the anti-entropy query used for catch-up sync.
func (g *Graph) SuccessorsOf(front map[int][]string) ([]*Event, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	// Walk the given frontier's causal past. Ids we do not have are part of
	// the requester's past that we never saw; they are simply skipped.
	past := make(map[string]struct{})
	queue := []string{}
	for _, ids := range front {
		queue = append(queue, ids...)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, ok := past[id]; ok {
			continue
		}
		past[id] = struct{}{}

		event, err := g.Store.GetEvent(id)
		if err != nil {
			if cm.IsStore(err, cm.KeyNotFound) {
				continue
			}
			return nil, err
		}
		queue = append(queue, event.Parents...)
	}

	first, ok := g.Store.FirstLayer()
	if !ok {
		return nil, nil
	}
	last, _ := g.Store.LastLayer()

	var res []*Event
	for layer := first; layer <= last; layer++ {
		for _, id := range g.Store.LayerEvents(layer) {
			if _, ok := past[id]; ok {
				continue
			}
			event, err := g.Store.GetEvent(id)
			if err != nil {
				return nil, err
			}
			res = append(res, event)
		}
	}

	return res, nil
}

// Tips returns the current frontier as a flat list of ids, in lexical order.
// It is what NewEvent captures as parents.
func (g *Graph) Tips() []string {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.frontier.tips()
}

// TipsAtLayer returns the tips of a single layer.
func (g *Graph) TipsAtLayer(layer int) []string {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.frontier.tipsAtLayer(layer)
}

// LastTipLayer returns the highest layer with a tip.
func (g *Graph) LastTipLayer() (int, bool) {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.frontier.lastLayer()
}

// FrontierSnapshot returns the layer => tips mapping sent in fetch requests.
func (g *Graph) FrontierSnapshot() map[int][]string {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.frontier.snapshot()
}

// IsTip reports whether id is currently an unreferenced tip.
func (g *Graph) IsTip(id string) bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.frontier.contains(id)
}

// LastEvent returns the most recently stored event, for diagnostics.
func (g *Graph) LastEvent() (*Event, error) {
	return g.Store.LastEvent()
}

// EventCount returns the number of stored events.
func (g *Graph) EventCount() int {
	return g.Store.EventCount()
}

// OrphanCount returns the number of buffered orphans.
func (g *Graph) OrphanCount() int {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.orphans.len()
}

// PruneLayers removes the oldest layers so that at most keep layers remain,
// strictly oldest-first and contiguous from the root, so no remaining event
// can reference a pruned parent. It returns the pruned events in removal
// order.
func (g *Graph) PruneLayers(keep int) ([]*Event, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	first, ok := g.Store.FirstLayer()
	if !ok {
		return nil, nil
	}
	last, _ := g.Store.LastLayer()

	if keep < 1 {
		keep = 1
	}

	var pruned []*Event
	for layer := first; layer <= last-keep; layer++ {
		ids := g.Store.LayerEvents(layer)
		for _, id := range ids {
			event, err := g.Store.GetEvent(id)
			if err != nil {
				return nil, err
			}
			pruned = append(pruned, event)
		}
		if err := g.Store.DeleteEvents(ids); err != nil {
			return nil, err
		}
		for _, id := range ids {
			g.frontier.remove(id)
		}
	}

	return pruned, nil
}
