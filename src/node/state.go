package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of an Evergraph node: Syncing, Running, or
// Shutdown
type State uint32

const (
	// Syncing is the initial state, in which a node catches up with its peers
	// through anti-entropy before accepting local submissions.
	Syncing State = iota

	// Running is the state in which a node gossips regularly with other nodes
	// and accepts local submissions.
	Running

	// Shutdown is the state in which a node stops responding to external
	// events and closes its transport.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Syncing:
		return "Syncing"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.goFunc
const WGLIMIT = 20

type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	tempWgCount := atomic.LoadInt32(&b.wgCount)
	if tempWgCount < WGLIMIT {
		b.wg.Add(1)
		atomic.AddInt32(&b.wgCount, 1)
		go func() {
			defer b.wg.Done()
			atomic.AddInt32(&b.wgCount, -1)
			f()
		}()
	}
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
