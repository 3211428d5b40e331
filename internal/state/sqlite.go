package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/database"
)

// SQLiteStore persists objects and states in the tables created by the
// embedded migrations. Acknowledged writes are also appended to
// state_history.
type SQLiteStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLiteStore wraps a migrated database.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// GetState returns the state of id.
func (s *SQLiteStore) GetState(ctx context.Context, id string) (State, bool, error) {
	var raw, ts string
	var ack bool
	err := s.db.QueryRowContext(ctx,
		"SELECT val_json, ack, ts FROM states WHERE id = ?", id).Scan(&raw, &ack, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("querying state %s: %w", id, err)
	}
	return decodeState(raw, ack, ts)
}

// SetState upserts the state of id.
func (s *SQLiteStore) SetState(ctx context.Context, id string, val any, ack bool) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encoding state %s: %w", id, err)
	}
	ts := s.now().UTC().Format(time.RFC3339Nano)

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO states (id, val_json, ack, ts) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET val_json = excluded.val_json, ack = excluded.ack, ts = excluded.ts`,
			id, string(raw), ack, ts); err != nil {
			return fmt.Errorf("writing state %s: %w", id, err)
		}
		if !ack {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO state_history (id, val_json, ts) VALUES (?, ?, ?)",
			id, string(raw), ts); err != nil {
			return fmt.Errorf("writing history %s: %w", id, err)
		}
		return nil
	})
}

// GetObject returns the object for id.
func (s *SQLiteStore) GetObject(ctx context.Context, id string) (Object, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, role, value_type, readable, writable, min_value, max_value, unit, states_json
		FROM objects WHERE id = ?`, id)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, false, nil
	}
	if err != nil {
		return Object{}, false, fmt.Errorf("querying object %s: %w", id, err)
	}
	return obj, true, nil
}

// ExtendObject creates or updates an object. A stored name and stored
// enumeration entries survive the update.
func (s *SQLiteStore) ExtendObject(ctx context.Context, obj Object) error {
	if !ValidID(obj.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, obj.ID)
	}
	ts := s.now().UTC().Format(time.RFC3339Nano)

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanObject(tx.QueryRowContext(ctx, `
			SELECT id, name, role, value_type, readable, writable, min_value, max_value, unit, states_json
			FROM objects WHERE id = ?`, obj.ID))
		found := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("querying object %s: %w", obj.ID, err)
		}
		merged := mergeObject(existing, found, obj)

		var statesJSON sql.NullString
		if merged.States != nil {
			raw, err := json.Marshal(merged.States)
			if err != nil {
				return fmt.Errorf("encoding states of %s: %w", obj.ID, err)
			}
			statesJSON = sql.NullString{String: string(raw), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO objects (id, name, role, value_type, readable, writable, min_value, max_value, unit, states_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				role = excluded.role,
				value_type = excluded.value_type,
				readable = excluded.readable,
				writable = excluded.writable,
				min_value = excluded.min_value,
				max_value = excluded.max_value,
				unit = excluded.unit,
				states_json = excluded.states_json,
				updated_at = excluded.updated_at`,
			merged.ID, merged.Name, merged.Role, string(merged.Type), merged.Read, merged.Write,
			nullFloat(merged.Min), nullFloat(merged.Max), merged.Unit, statesJSON, ts); err != nil {
			return fmt.Errorf("writing object %s: %w", obj.ID, err)
		}
		return nil
	})
}

// List returns every object with its state, sorted by id.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.name, o.role, o.value_type, o.readable, o.writable, o.min_value, o.max_value, o.unit, o.states_json,
		       s.val_json, s.ack, s.ts
		FROM objects o LEFT JOIN states s ON s.id = o.id
		ORDER BY o.id`)
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			obj     objectRow
			val, ts sql.NullString
			ack     sql.NullBool
		)
		if err := rows.Scan(obj.dest(&val, &ack, &ts)...); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Object, err = obj.object()
		if err != nil {
			return nil, err
		}
		if val.Valid {
			e.State, _, err = decodeState(val.String, ack.Bool, ts.String)
			if err != nil {
				return nil, err
			}
			e.HasState = true
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Object.ID < out[j].Object.ID })
	return out, nil
}

// History returns up to limit acknowledged values of id, newest first.
func (s *SQLiteStore) History(ctx context.Context, id string, limit int) ([]State, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT val_json, ts FROM state_history WHERE id = ? ORDER BY seq DESC LIMIT ?", id, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history %s: %w", id, err)
	}
	defer rows.Close()

	var out []State
	for rows.Next() {
		var raw, ts string
		if err := rows.Scan(&raw, &ts); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		st, _, err := decodeState(raw, true, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type objectRow struct {
	id, name, role, valueType, unit string
	read, write                     bool
	min, max                        sql.NullFloat64
	states                          sql.NullString
}

func (r *objectRow) dest(extra ...any) []any {
	return append([]any{&r.id, &r.name, &r.role, &r.valueType, &r.read, &r.write, &r.min, &r.max, &r.unit, &r.states}, extra...)
}

func (r *objectRow) object() (Object, error) {
	obj := Object{
		ID: r.id, Name: r.name, Role: r.role, Type: ValueType(r.valueType),
		Read: r.read, Write: r.write, Unit: r.unit,
	}
	if r.min.Valid {
		obj.Min = Float(r.min.Float64)
	}
	if r.max.Valid {
		obj.Max = Float(r.max.Float64)
	}
	if r.states.Valid {
		obj.States = &Enumeration{}
		if err := json.Unmarshal([]byte(r.states.String), obj.States); err != nil {
			return Object{}, fmt.Errorf("decoding states of %s: %w", r.id, err)
		}
	}
	return obj, nil
}

func scanObject(row *sql.Row) (Object, error) {
	var r objectRow
	if err := row.Scan(r.dest()...); err != nil {
		return Object{}, err
	}
	return r.object()
}

func decodeState(raw string, ack bool, ts string) (State, bool, error) {
	var val any
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		return State{}, false, fmt.Errorf("decoding state value: %w", err)
	}
	t, _ := time.Parse(time.RFC3339Nano, ts) //nolint:errcheck // written by SetState
	return State{Val: val, Ack: ack, TS: t}, true, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
