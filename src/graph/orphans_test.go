package graph

import (
	"fmt"
	"testing"
	"time"

	"github.com/evergraph/evergraph/src/common"
	"github.com/stretchr/testify/require"
)

func TestOrphanPoolCapacity(t *testing.T) {
	logger := common.NewTestEntry(t, common.TestLogLevel)
	g := NewGraph(NewInmemStore(), nil, 2, time.Minute, logger)

	genesis := NewGenesisEvent()
	_, err := g.InsertEvents(genesis)
	require.NoError(t, err)

	// Three orphans against a pool of two: the oldest must be evicted.
	missing := newTestEvent(99, "missing", genesis.Hex())
	o1 := newTestEvent(1, "orphan1", missing.Hex())
	o2 := newTestEvent(2, "orphan2", missing.Hex())
	o3 := newTestEvent(3, "orphan3", missing.Hex())

	_, err = g.InsertEvents(o1, o2, o3)
	require.NoError(t, err)
	require.Equal(t, 2, g.OrphanCount())

	// Resolving the dependency releases only the survivors.
	_, err = g.InsertEvents(missing)
	require.NoError(t, err)

	require.False(t, g.Store.ContainsEvent(o1.Hex()), "oldest orphan should have been dropped")
	require.True(t, g.Store.ContainsEvent(o2.Hex()))
	require.True(t, g.Store.ContainsEvent(o3.Hex()))
	require.Equal(t, 0, g.OrphanCount())
}

func TestOrphanPoolExpiry(t *testing.T) {
	pool := newOrphanPool(16, 50*time.Millisecond)

	now := time.Now()
	o1 := newTestEvent(1, "orphan1", "0XAA")
	pool.add(o1, []string{"0XAA"}, now)

	require.Empty(t, pool.sweep(now))

	expired := pool.sweep(now.Add(time.Second))
	require.Len(t, expired, 1)
	require.Equal(t, o1.Hex(), expired[0].Hex())
	require.Equal(t, 0, pool.len())

	// An expired orphan is no longer released by its parent.
	require.Empty(t, pool.release("0XAA"))
}

func TestOrphanPoolMultipleParents(t *testing.T) {
	pool := newOrphanPool(16, time.Minute)

	o := newTestEvent(1, "orphan", "0XAA", "0XBB")
	pool.add(o, []string{"0XAA", "0XBB"}, time.Now())

	require.Empty(t, pool.release("0XAA"), "orphan should still wait for 0XBB")

	ready := pool.release("0XBB")
	require.Len(t, ready, 1)
	require.Equal(t, o.Hex(), ready[0].Hex())
}

func TestOrphanPoolEvictionOrder(t *testing.T) {
	pool := newOrphanPool(2, time.Minute)

	var events []*Event
	for i := 0; i < 4; i++ {
		e := newTestEvent(int64(i), fmt.Sprintf("orphan%d", i), "0XAA")
		events = append(events, e)
	}

	now := time.Now()
	require.Nil(t, pool.add(events[0], []string{"0XAA"}, now))
	require.Nil(t, pool.add(events[1], []string{"0XAA"}, now))

	dropped := pool.add(events[2], []string{"0XAA"}, now)
	require.NotNil(t, dropped)
	require.Equal(t, events[0].Hex(), dropped.Hex())

	dropped = pool.add(events[3], []string{"0XAA"}, now)
	require.NotNil(t, dropped)
	require.Equal(t, events[1].Hex(), dropped.Hex())
}
