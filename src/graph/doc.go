/*
Package graph implements a replicated, content-addressed event graph.

Events are immutable and identified by the hash of their own serialized form,
which includes the ids of their parents. The graph therefore forms a DAG whose
growing edge, the frontier, is the set of events with no recorded children.
New events are created against the current frontier, so the structure encodes
causal order without any central sequencer.

The Graph object combines a Store (in-memory or Badger-backed) with a frontier
tracker and an orphan pool. Events may arrive in any order; events whose
parents are not yet known are buffered and committed automatically when their
dependencies resolve.
*/
package graph
