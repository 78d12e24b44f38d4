/*
Package net implements the gossip wire protocol.

A NetworkTransport sits on top of a StreamLayer (plain TCP, or in-memory for
tests) and frames every exchange as a single tag byte followed by a JSON
encoded body; responses carry an error string followed by the response body.
Inbound commands are surfaced on a consumer channel and answered through a
response channel, so the transport never interprets the event graph itself.

The protocol has four commands: a version handshake, a live event push, an
anti-entropy fetch carrying the requester's frontier, and a raw send-event
used by clients to author content through a node.
*/
package net
