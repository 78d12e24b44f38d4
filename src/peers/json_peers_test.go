package peers

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONPeerSet(t *testing.T) {
	// Create a test dir
	dir, err := ioutil.TempDir("", "evergraph")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	// Create the store
	store := NewJSONPeerSet(filepath.Join(dir, "peers.json"))

	// Try a read, should get nothing
	peerSet, err := store.PeerSet()
	if err == nil {
		t.Fatalf("store.PeerSet() should generate an error")
	}
	if peerSet != nil {
		t.Fatalf("peerSet: %v", peerSet)
	}

	peers := []*Peer{}
	for i := 0; i < 3; i++ {
		peer := &Peer{
			NetAddr: fmt.Sprintf("addr%d", i),
			Moniker: fmt.Sprintf("peer%d", i),
		}
		peers = append(peers, peer)
	}

	newPeerSet := NewPeerSet(peers)
	newPeerSlice := newPeerSet.Peers

	if err := store.Write(newPeerSlice); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Try a read, should find 3 peers
	peerSet, err = store.PeerSet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if peerSet.Len() != 3 {
		t.Fatalf("peers: %v", peers)
	}

	peerSlice := peerSet.Peers

	for i := 0; i < 3; i++ {
		if peerSlice[i].NetAddr != newPeerSlice[i].NetAddr {
			t.Fatalf("peers[%d] NetAddr should be %s, not %s", i,
				newPeerSlice[i].NetAddr, peerSlice[i].NetAddr)
		}
		if peerSlice[i].Moniker != newPeerSlice[i].Moniker {
			t.Fatalf("peers[%d] Moniker should be %s, not %s", i,
				newPeerSlice[i].Moniker, peerSlice[i].Moniker)
		}
		if peerSlice[i].ID() != newPeerSlice[i].ID() {
			t.Fatalf("peers[%d] ID should be %d, not %d", i,
				newPeerSlice[i].ID(), peerSlice[i].ID())
		}
	}
}

func TestPeerID(t *testing.T) {
	a := NewPeer("127.0.0.1:1742", "alice")
	b := NewPeer("127.0.0.1:1742", "bob")
	c := NewPeer("127.0.0.1:1743", "alice")

	// ID is derived from the address only
	if a.ID() != b.ID() {
		t.Fatalf("same address should give same ID: %d %d", a.ID(), b.ID())
	}
	if a.ID() == c.ID() {
		t.Fatalf("different addresses should give different IDs: %d", a.ID())
	}
}

func TestPeerSetNextPeer(t *testing.T) {
	ps := NewPeerSet([]*Peer{
		NewPeer("addr0", "peer0"),
		NewPeer("addr1", "peer1"),
	})

	others := ps.WithoutAddr("addr0")
	if others.Len() != 1 {
		t.Fatalf("expected 1 peer, got %d", others.Len())
	}
	if p := others.NextPeer(); p.NetAddr != "addr1" {
		t.Fatalf("expected addr1, got %s", p.NetAddr)
	}

	empty := others.WithoutAddr("addr1")
	if p := empty.NextPeer(); p != nil {
		t.Fatalf("empty set should return nil, got %v", p)
	}
}
