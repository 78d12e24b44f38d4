package graph

import (
	"io/ioutil"
	"log"
	"os"
	"reflect"
	"testing"
)

func initBadgerStore(t *testing.T) *BadgerStore {
	os.RemoveAll("test_data")
	os.Mkdir("test_data", os.ModeDir|0777)
	dir, err := ioutil.TempDir("test_data", "badger")
	if err != nil {
		log.Fatal(err)
	}

	store, err := NewBadgerStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	return store
}

func removeBadgerStore(store *BadgerStore, t *testing.T) {
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(store.path); err != nil {
		t.Fatal(err)
	}
}

func TestBadgerEvents(t *testing.T) {
	store := initBadgerStore(t)
	defer removeBadgerStore(store, t)

	genesis := NewGenesisEvent()
	e1 := newTestEvent(1, "one", genesis.Hex())
	e1.layer = 1

	if err := store.SetEvent(genesis); err != nil {
		t.Fatal(err)
	}
	if err := store.SetEvent(e1); err != nil {
		t.Fatal(err)
	}

	if !store.ContainsEvent(e1.Hex()) {
		t.Fatalf("Store should contain %s", e1.Hex())
	}

	// Fetch from the database directly, bypassing the in-memory front.
	dbEvent, err := store.dbGetEvent(e1.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if dbEvent.Hex() != e1.Hex() {
		t.Fatalf("DB event id should be %s, not %s", e1.Hex(), dbEvent.Hex())
	}
	if dbEvent.Layer() != 1 {
		t.Fatalf("DB event layer should be 1, not %d", dbEvent.Layer())
	}

	if _, err := store.GetEvent("0XDEADBEEF"); err == nil {
		t.Fatal("GetEvent on an unknown id should error")
	}
}

func TestBadgerReload(t *testing.T) {
	store := initBadgerStore(t)
	path := store.path

	genesis := NewGenesisEvent()
	e1 := newTestEvent(1, "one", genesis.Hex())
	e1.layer = 1
	e2 := newTestEvent(2, "two", e1.Hex())
	e2.layer = 2

	for _, event := range []*Event{genesis, e1, e2} {
		if err := store.SetEvent(event); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadBadgerStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer removeBadgerStore(reloaded, t)

	if !reloaded.NeedBootstrap() {
		t.Fatal("Reloaded store should need bootstrap")
	}

	if reloaded.EventCount() != 3 {
		t.Fatalf("Reloaded store should contain 3 events, not %d", reloaded.EventCount())
	}

	got, err := reloaded.GetEvent(e2.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if got.Layer() != 2 {
		t.Fatalf("Reloaded event layer should be 2, not %d", got.Layer())
	}

	if layers := reloaded.LayerEvents(1); !reflect.DeepEqual(layers, []string{e1.Hex()}) {
		t.Fatalf("Layer 1 should contain [%s], not %v", e1.Hex(), layers)
	}
}

func TestBadgerDeleteEvents(t *testing.T) {
	store := initBadgerStore(t)
	defer removeBadgerStore(store, t)

	genesis := NewGenesisEvent()
	e1 := newTestEvent(1, "one", genesis.Hex())
	e1.layer = 1

	for _, event := range []*Event{genesis, e1} {
		if err := store.SetEvent(event); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.DeleteEvents([]string{genesis.Hex()}); err != nil {
		t.Fatal(err)
	}

	if store.ContainsEvent(genesis.Hex()) {
		t.Fatal("Deleted event should be gone from the in-memory front")
	}
	if _, err := store.dbGetEvent(genesis.Hex()); err == nil {
		t.Fatal("Deleted event should be gone from the database")
	}

	first, ok := store.FirstLayer()
	if !ok || first != 1 {
		t.Fatalf("First layer should be 1 after deletion, not %d", first)
	}
}

func TestBadgerBootstrapFrontier(t *testing.T) {
	store := initBadgerStore(t)
	path := store.path

	g := NewGraph(store, nil, 16, 0, nil)

	genesis := NewGenesisEvent()
	e1 := newTestEvent(1, "one", genesis.Hex())
	e2 := newTestEvent(2, "two", genesis.Hex())

	if _, err := g.InsertEvents(genesis, e1, e2); err != nil {
		t.Fatal(err)
	}

	tips := g.Tips()

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadBadgerStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer removeBadgerStore(reloaded, t)

	g2 := NewGraph(reloaded, nil, 16, 0, nil)
	if err := g2.Bootstrap(); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(g2.Tips(), tips) {
		t.Fatalf("Bootstrapped frontier should be %v, not %v", tips, g2.Tips())
	}
}
