package state

import (
	"context"
	"fmt"
)

// ApplyHostWrite validates a command written by the host and stores it
// unacknowledged. The returned StateChange is what the bridge encodes.
func ApplyHostWrite(ctx context.Context, store Store, id string, val any) (StateChange, error) {
	if !ValidID(id) {
		return StateChange{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	obj, ok, err := store.GetObject(ctx, id)
	if err != nil {
		return StateChange{}, err
	}
	if !ok {
		return StateChange{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !obj.Write {
		return StateChange{}, fmt.Errorf("%w: %s", ErrReadOnly, id)
	}
	if err := store.SetState(ctx, id, val, false); err != nil {
		return StateChange{}, err
	}
	return StateChange{ID: id, Value: val, Ack: false}, nil
}
