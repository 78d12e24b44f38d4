package graph

import (
	"reflect"
	"testing"
)

func newTestEvent(timestamp int64, content string, parents ...string) *Event {
	return &Event{
		Timestamp: timestamp,
		Content:   []byte(content),
		Parents:   parents,
	}
}

func TestMarshalUnmarshalEvent(t *testing.T) {
	exp := newTestEvent(42, "payload", "0XAA", "0XBB")

	raw, err := exp.Marshal()
	if err != nil {
		t.Fatalf("Error marshalling Event: %s", err)
	}

	got := new(Event)
	if err := got.Unmarshal(raw); err != nil {
		t.Fatalf("Error unmarshalling Event: %s", err)
	}

	if got.Timestamp != exp.Timestamp ||
		!reflect.DeepEqual(got.Content, exp.Content) ||
		!reflect.DeepEqual(got.Parents, exp.Parents) {
		t.Fatalf("Event should be %#v, not %#v", exp, got)
	}

	if got.Hex() != exp.Hex() {
		t.Fatalf("Round-tripped Event id should be %s, not %s", exp.Hex(), got.Hex())
	}
}

func TestMarshalUnmarshalGenesisEvent(t *testing.T) {
	exp := NewGenesisEvent()

	raw, err := exp.Marshal()
	if err != nil {
		t.Fatalf("Error marshalling genesis Event: %s", err)
	}

	got := new(Event)
	if err := got.Unmarshal(raw); err != nil {
		t.Fatalf("Error unmarshalling genesis Event: %s", err)
	}

	if len(got.Parents) != 0 {
		t.Fatalf("Genesis Event should have no parents, got %v", got.Parents)
	}

	if got.Hex() != exp.Hex() {
		t.Fatalf("Genesis id should be %s, not %s", exp.Hex(), got.Hex())
	}
}

func TestEventHashDeterministic(t *testing.T) {
	e1 := newTestEvent(7, "same", "0XAA")
	e2 := newTestEvent(7, "same", "0XAA")

	if e1.Hex() != e2.Hex() {
		t.Fatalf("Identical events should have identical ids: %s != %s", e1.Hex(), e2.Hex())
	}

	e3 := newTestEvent(8, "same", "0XAA")
	if e1.Hex() == e3.Hex() {
		t.Fatal("Events with different timestamps should have different ids")
	}
}

func TestEventMarshalDB(t *testing.T) {
	exp := newTestEvent(42, "payload", "0XAA")
	exp.layer = 3

	raw, err := exp.MarshalDB()
	if err != nil {
		t.Fatalf("Error marshalling Event for DB: %s", err)
	}

	got := new(Event)
	if err := got.UnmarshalDB(raw); err != nil {
		t.Fatalf("Error unmarshalling Event from DB: %s", err)
	}

	if got.Layer() != 3 {
		t.Fatalf("DB round-trip should preserve layer 3, got %d", got.Layer())
	}

	if got.Hex() != exp.Hex() {
		t.Fatalf("DB round-trip should preserve id %s, got %s", exp.Hex(), got.Hex())
	}
}

func TestEventScaledCopy(t *testing.T) {
	e := newTestEvent(5000, "payload", "0XAA")

	scaled := e.ScaledCopy(1000)

	if scaled.Timestamp != 5 {
		t.Fatalf("Scaled timestamp should be 5, not %d", scaled.Timestamp)
	}

	if !reflect.DeepEqual(scaled.Parents, e.Parents) {
		t.Fatalf("Scaled copy should keep parents %v, got %v", e.Parents, scaled.Parents)
	}

	if scaled.Hex() == e.Hex() {
		t.Fatal("Scaled copy should have its own identity")
	}

	// A divisor below 1 must not zero the timestamp.
	same := e.ScaledCopy(0)
	if same.Timestamp != e.Timestamp {
		t.Fatalf("Divisor 0 should leave timestamp %d intact, got %d", e.Timestamp, same.Timestamp)
	}
}
