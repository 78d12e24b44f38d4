package net

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/evergraph/evergraph/src/common"
	"github.com/evergraph/evergraph/src/graph"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func NewTestTransport(ttype int, addr string, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport(addr)
		return it
	case TCP:
		tt, err := NewTCPTransport(addr, "", 2, time.Second, common.NewTestEntry(t, common.TestLogLevel))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

func connectTransports(trans1, trans2 Transport) {
	it1, ok1 := trans1.(*InmemTransport)
	it2, ok2 := trans2.(*InmemTransport)
	if ok1 && ok2 {
		it1.Connect(it2.LocalAddr(), it2)
		it2.Connect(it1.LocalAddr(), it1)
	}
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_Handshake(t *testing.T) {
	addr1 := "127.0.0.1:1234"
	addr2 := "127.0.0.1:1235"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := HandshakeRequest{
			FromID:          1,
			ProtocolVersion: 1,
			AppVersion:      2,
		}
		resp := HandshakeResponse{
			FromID:          2,
			ProtocolVersion: 1,
			AppVersion:      1,
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*HandshakeRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}

				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Error("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()
		connectTransports(trans1, trans2)

		var out HandshakeResponse
		if err := trans2.Handshake(trans1.AdvertiseAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		// Verify the response
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("command mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_PushEvents(t *testing.T) {
	addr1 := "127.0.0.1:1236"
	addr2 := "127.0.0.1:1237"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		genesis := graph.NewGenesisEvent()

		args := PushEventsRequest{
			FromID: 1,
			Events: []*graph.Event{
				genesis,
				{Timestamp: 1, Content: []byte("hello"), Parents: []string{genesis.Hex()}},
			},
		}
		resp := PushEventsResponse{
			FromID:  2,
			Success: true,
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*PushEventsRequest)
				if len(req.Events) != 2 {
					t.Errorf("expected 2 events, got %d", len(req.Events))
				}
				if req.Events[1].Hex() != args.Events[1].Hex() {
					t.Errorf("event id mismatch after transit")
				}

				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Error("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()
		connectTransports(trans1, trans2)

		var out PushEventsResponse
		if err := trans2.PushEvents(trans1.AdvertiseAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("command mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_FetchEvents(t *testing.T) {
	addr1 := "127.0.0.1:1238"
	addr2 := "127.0.0.1:1239"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := FetchEventsRequest{
			FromID: 1,
			Frontier: map[int][]string{
				0: {"0XAA"},
				2: {"0XBB", "0XCC"},
			},
		}
		resp := FetchEventsResponse{
			FromID: 2,
			Events: []*graph.Event{
				{Timestamp: 1, Content: []byte("hello"), Parents: []string{"0XAA"}},
			},
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*FetchEventsRequest)
				if !reflect.DeepEqual(req.Frontier, args.Frontier) {
					t.Errorf("frontier mismatch: %#v %#v", req.Frontier, args.Frontier)
				}

				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Error("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()
		connectTransports(trans1, trans2)

		var out FetchEventsResponse
		if err := trans2.FetchEvents(trans1.AdvertiseAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if len(out.Events) != 1 || out.Events[0].Hex() != resp.Events[0].Hex() {
			t.Fatalf("response mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_UnknownRPCType(t *testing.T) {
	trans1 := NewTestTransport(TCP, "127.0.0.1:1242", t)
	defer trans1.Close()
	rpcCh := trans1.Consumer()

	// A stray type byte poisons the rest of the stream, so the listener
	// resets that connection.
	conn, err := net.Dial("tcp", trans1.AdvertiseAddr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{0xFF}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatal("connection should have been reset")
	}

	// Only that connection: a fresh exchange must still go through.
	args := HandshakeRequest{
		FromID:          1,
		ProtocolVersion: 1,
		AppVersion:      2,
	}
	resp := HandshakeResponse{
		FromID:          2,
		ProtocolVersion: 1,
		AppVersion:      2,
	}

	go func() {
		select {
		case rpc := <-rpcCh:
			rpc.Respond(&resp, nil)
		case <-time.After(200 * time.Millisecond):
			t.Error("timeout")
		}
	}()

	trans2 := NewTestTransport(TCP, "127.0.0.1:1243", t)
	defer trans2.Close()

	var out HandshakeResponse
	if err := trans2.Handshake(trans1.AdvertiseAddr(), &args, &out); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reflect.DeepEqual(resp, out) {
		t.Fatalf("command mismatch: %#v %#v", resp, out)
	}
}

func TestTransport_SendEvent(t *testing.T) {
	addr1 := "127.0.0.1:1240"
	addr2 := "127.0.0.1:1241"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		args := SendEventRequest{
			Timestamp: 42,
			Content:   []byte("hello world"),
		}
		resp := SendEventResponse{
			FromID: 2,
			ID:     "0XDD",
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*SendEventRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}

				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Error("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()
		connectTransports(trans1, trans2)

		var out SendEventResponse
		if err := trans2.SendEvent(trans1.AdvertiseAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("command mismatch: %#v %#v", resp, out)
		}
	}
}
