package state

import (
	"context"
	"strings"
	"time"
)

// ValueType is the type of a state value.
type ValueType string

// Value types.
const (
	TypeBoolean ValueType = "boolean"
	TypeNumber  ValueType = "number"
	TypeString  ValueType = "string"
	TypeJSON    ValueType = "json"
)

// Object describes one state path.
type Object struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Role   string       `json:"role"`
	Type   ValueType    `json:"type"`
	Read   bool         `json:"read"`
	Write  bool         `json:"write"`
	Min    *float64     `json:"min,omitempty"`
	Max    *float64     `json:"max,omitempty"`
	Unit   string       `json:"unit,omitempty"`
	States *Enumeration `json:"states,omitempty"`
}

// Clone returns a deep copy of o.
func (o Object) Clone() Object {
	c := o
	if o.Min != nil {
		v := *o.Min
		c.Min = &v
	}
	if o.Max != nil {
		v := *o.Max
		c.Max = &v
	}
	c.States = o.States.Clone()
	return c
}

// State is the latest value of a path.
type State struct {
	Val any       `json:"val"`
	Ack bool      `json:"ack"`
	TS  time.Time `json:"ts"`
}

// StateChange is a write observed on the store. Host commands carry
// Ack=false; device-confirmed values carry Ack=true.
type StateChange struct {
	ID    string `json:"id"`
	Value any    `json:"val"`
	Ack   bool   `json:"ack"`
}

// Entry pairs an object with its current state for listings.
type Entry struct {
	Object   Object `json:"object"`
	State    State  `json:"state"`
	HasState bool   `json:"has_state"`
}

// Store is the host state store.
//
// ExtendObject creates the object when absent and otherwise replaces its
// definition while keeping the existing display name. Enumeration entries
// already stored are never removed or renumbered; labels only the incoming
// definition has are appended.
type Store interface {
	GetState(ctx context.Context, id string) (State, bool, error)
	SetState(ctx context.Context, id string, val any, ack bool) error
	GetObject(ctx context.Context, id string) (Object, bool, error)
	ExtendObject(ctx context.Context, obj Object) error
	List(ctx context.Context) ([]Entry, error)
}

// Float returns a pointer to v, for Object.Min and Object.Max.
func Float(v float64) *float64 {
	return &v
}

// ValidID reports whether id is a non-empty dotted path without empty
// segments or MQTT wildcard characters.
func ValidID(id string) bool {
	if id == "" || strings.ContainsAny(id, "+#/ ") {
		return false
	}
	for _, seg := range strings.Split(id, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}

// mergeObject applies ExtendObject semantics to an existing definition:
// a stored name wins and stored enumeration entries survive.
func mergeObject(existing Object, found bool, next Object) Object {
	merged := next.Clone()
	if !found {
		return merged
	}
	if existing.Name != "" {
		merged.Name = existing.Name
	}
	if existing.States != nil {
		merged.States = existing.States.Merge(next.States)
	}
	return merged
}
