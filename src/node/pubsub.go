package node

import (
	"sync"

	"github.com/evergraph/evergraph/src/graph"
	"github.com/sirupsen/logrus"
)

// PubSub connects applications to the node. Content written to the submit
// channel is wrapped in a new event and gossiped; every event committed to
// the graph, local or remote, is fanned out to subscribers.
type PubSub struct {
	submitCh chan []byte

	subs   map[int]chan *graph.Event
	nextID int

	lock sync.Mutex

	logger *logrus.Entry
}

// NewPubSub creates a PubSub with an empty subscriber list.
func NewPubSub(logger *logrus.Entry) *PubSub {
	return &PubSub{
		submitCh: make(chan []byte),
		subs:     make(map[int]chan *graph.Event),
		logger:   logger,
	}
}

// SubmitCh returns the channel through which applications submit raw content.
func (p *PubSub) SubmitCh() chan []byte {
	return p.submitCh
}

// Subscribe registers a new subscriber and returns its id and channel. The
// channel is buffered; a subscriber that does not keep up loses events rather
// than blocking the node.
func (p *PubSub) Subscribe(buffer int) (int, <-chan *graph.Event) {
	p.lock.Lock()
	defer p.lock.Unlock()

	ch := make(chan *graph.Event, buffer)
	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *PubSub) Unsubscribe(id int) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if ch, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(ch)
	}
}

// Publish delivers a committed event to every subscriber, best-effort.
func (p *PubSub) Publish(event *graph.Event) {
	p.lock.Lock()
	defer p.lock.Unlock()

	for id, ch := range p.subs {
		select {
		case ch <- event:
		default:
			p.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"event":      event.Hex(),
			}).Warn("subscriber too slow, dropping event")
		}
	}
}
