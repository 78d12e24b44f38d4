package net

// RPCResponse carries the answer to a gossip exchange, or the error it
// failed with.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC is a single inbound gossip exchange, as surfaced on the transport's
// Consumer channel. Command holds the decoded request (HandshakeRequest,
// PushEventsRequest, FetchEventsRequest or SendEventRequest) and the handler
// answers through RespChan.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// Respond answers the exchange with a response, an error, or both.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}
