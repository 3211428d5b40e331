package state

import (
	"context"
	"errors"
	"testing"
)

// storeContract runs the behaviour every Store implementation shares.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("state round trip", func(t *testing.T) {
		s := newStore(t)
		if _, ok, err := s.GetState(ctx, "zoneMain.volume"); err != nil || ok {
			t.Fatalf("GetState() on empty store = %v, %v", ok, err)
		}
		if err := s.SetState(ctx, "zoneMain.volume", 35.5, true); err != nil {
			t.Fatalf("SetState() error = %v", err)
		}
		st, ok, err := s.GetState(ctx, "zoneMain.volume")
		if err != nil || !ok {
			t.Fatalf("GetState() = %v, %v", ok, err)
		}
		if st.Val != 35.5 || !st.Ack || st.TS.IsZero() {
			t.Errorf("state = %+v", st)
		}
	})

	t.Run("invalid id rejected", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"", "a..b", "a/b", "zone#"} {
			if err := s.SetState(ctx, id, 1.0, true); !errors.Is(err, ErrInvalidID) {
				t.Errorf("SetState(%q) = %v, want ErrInvalidID", id, err)
			}
		}
	})

	t.Run("extend keeps name", func(t *testing.T) {
		s := newStore(t)
		first := Object{ID: "zoneMain.selectInput", Name: "Lounge input", Role: "media.input",
			Type: TypeString, Read: true, Write: true, States: NewEnumeration("CD", "TUNER")}
		if err := s.ExtendObject(ctx, first); err != nil {
			t.Fatalf("ExtendObject() error = %v", err)
		}

		next := first.Clone()
		next.Name = "Select input"
		next.States.Extend("NEWSRC")
		if err := s.ExtendObject(ctx, next); err != nil {
			t.Fatalf("ExtendObject() error = %v", err)
		}

		got, ok, err := s.GetObject(ctx, first.ID)
		if err != nil || !ok {
			t.Fatalf("GetObject() = %v, %v", ok, err)
		}
		if got.Name != "Lounge input" {
			t.Errorf("Name = %q, want preserved %q", got.Name, "Lounge input")
		}
		if label, _ := got.States.Label(2); label != "NEWSRC" {
			t.Errorf("States[2] = %q, want NEWSRC", label)
		}
	})

	t.Run("extend keeps learned labels", func(t *testing.T) {
		s := newStore(t)
		learned := Object{ID: "zoneMain.selectInput", Type: TypeString, Read: true, Write: true,
			States: NewEnumeration("CD", "TUNER", "NEWSRC")}
		if err := s.ExtendObject(ctx, learned); err != nil {
			t.Fatalf("ExtendObject() error = %v", err)
		}

		// rebuilt from the catalog defaults after a restart
		rebuilt := learned.Clone()
		rebuilt.States = NewEnumeration("CD", "TUNER", "DVD")
		if err := s.ExtendObject(ctx, rebuilt); err != nil {
			t.Fatalf("ExtendObject() error = %v", err)
		}

		got, _, err := s.GetObject(ctx, learned.ID)
		if err != nil {
			t.Fatalf("GetObject() error = %v", err)
		}
		want := map[int]string{0: "CD", 1: "TUNER", 2: "NEWSRC", 3: "DVD"}
		if got.States.Len() != len(want) {
			t.Fatalf("States = %+v, want %v", got.States.Entries(), want)
		}
		for key, label := range want {
			if l, _ := got.States.Label(key); l != label {
				t.Errorf("States[%d] = %q, want %q", key, l, label)
			}
		}
	})

	t.Run("object min max", func(t *testing.T) {
		s := newStore(t)
		obj := Object{ID: "zoneMain.volumeDB", Type: TypeNumber, Read: true, Write: true,
			Min: Float(-80), Max: Float(18), Unit: "dB"}
		if err := s.ExtendObject(ctx, obj); err != nil {
			t.Fatalf("ExtendObject() error = %v", err)
		}
		got, _, _ := s.GetObject(ctx, obj.ID)
		if got.Min == nil || *got.Min != -80 || got.Max == nil || *got.Max != 18 || got.Unit != "dB" {
			t.Errorf("object = %+v", got)
		}
		if got.States != nil {
			t.Error("States should be nil when unset")
		}
	})

	t.Run("list", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"zoneMain.volume", "info.connection"} {
			if err := s.ExtendObject(ctx, Object{ID: id, Type: TypeNumber, Read: true}); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.SetState(ctx, "info.connection", true, true); err != nil {
			t.Fatal(err)
		}
		entries, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 2 || entries[0].Object.ID != "info.connection" {
			t.Fatalf("List() = %+v", entries)
		}
		if !entries[0].HasState || entries[0].State.Val != true {
			t.Errorf("info.connection entry = %+v", entries[0])
		}
		if entries[1].HasState {
			t.Error("zoneMain.volume should have no state")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_GetObjectReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.ExtendObject(ctx, Object{ID: "a.b", States: NewEnumeration("X")})

	obj, _, _ := s.GetObject(ctx, "a.b")
	obj.States.Extend("Y")

	again, _, _ := s.GetObject(ctx, "a.b")
	if again.States.Len() != 1 {
		t.Error("mutating a returned object changed the store")
	}
}

func TestApplyHostWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.ExtendObject(ctx, Object{ID: "zoneMain.volume", Type: TypeNumber, Read: true, Write: true})
	_ = s.ExtendObject(ctx, Object{ID: "info.friendlyName", Type: TypeString, Read: true})

	change, err := ApplyHostWrite(ctx, s, "zoneMain.volume", 40.0)
	if err != nil {
		t.Fatalf("ApplyHostWrite() error = %v", err)
	}
	if change != (StateChange{ID: "zoneMain.volume", Value: 40.0, Ack: false}) {
		t.Errorf("change = %+v", change)
	}
	if st, _, _ := s.GetState(ctx, "zoneMain.volume"); st.Ack {
		t.Error("host write must be stored unacknowledged")
	}

	tests := []struct {
		id   string
		want error
	}{
		{"info.friendlyName", ErrReadOnly},
		{"zone9.volume", ErrNotFound},
		{"bad..id", ErrInvalidID},
	}
	for _, tt := range tests {
		if _, err := ApplyHostWrite(ctx, s, tt.id, 1.0); !errors.Is(err, tt.want) {
			t.Errorf("ApplyHostWrite(%q) = %v, want %v", tt.id, err, tt.want)
		}
	}
}
