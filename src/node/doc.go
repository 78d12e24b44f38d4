// Package node implements the reactive component of an Evergraph node.
//
// This is the part of Evergraph that controls the gossip routines and
// accesses the underlying event graph. Node implements a simple state machine
// with three states: Syncing, Running, and Shutdown.
//
// Gossip
//
// Evergraph nodes communicate with other nodes in a fully connected p2p
// network. The communication mechanism is a custom RPC protocol over a
// network transport as defined in the net package. It combines eager push
// with periodic anti-entropy pull.
//
// When a node creates a new event, local or on behalf of a client, it pushes
// it to every peer with a PushEvents command. Pushes are best-effort; a peer
// that misses one buffers later events as orphans until the gap is repaired.
//
// Repair happens through the FetchEvents command. At random intervals, a node
// sends its frontier, the set of events that nothing references yet, to a
// random peer. The peer walks the causal past of that frontier and returns
// every event outside of it, parents before children, so the requester can
// insert them in a single pass.
//
// Syncing
//
// A node starts in the Syncing state, where it runs the same FetchEvents
// exchange against a random peer until one round succeeds. While Syncing, the
// node still answers requests but refuses to author events, so a client can
// never build on a stale frontier. If every attempt fails, the node shuts
// down rather than running half-synced.
//
// Versioning
//
// The first exchange with a peer is a Handshake carrying both sides' protocol
// and app versions. Version differences never refuse a connection; they only
// select compatibility adjustments, such as scaling event timestamps down
// when relaying to a peer that predates the millisecond convention.
package node
