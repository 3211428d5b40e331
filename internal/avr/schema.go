package avr

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"

	"github.com/nerrad567/gray-logic-avr/internal/state"
)

// Binding ties a materialized state path to its catalog definition.
type Binding struct {
	Func  Func
	Def   *Def
	Path  string
	Zone  int
	Index int
}

type bindingKey struct {
	fn    Func
	zone  int
	index int
}

// session is the per-device knowledge shared by the encoder and decoder:
// dialect, materialized bindings, capability flags and zone modes. It is
// only touched from the bridge loop.
type session struct {
	store  state.Store
	logger Logger

	dialect Dialect
	catalog *Catalog

	bindings map[string]*Binding
	byKey    map[bindingKey]*Binding

	caps     map[Capability]bool
	zones    map[int]bool
	ampModes map[int]Mode
	presets  map[string]string

	diag *regexp.Regexp
}

func newSession(store state.Store, logger Logger) *session {
	return &session{
		store:    store,
		logger:   logger,
		bindings: make(map[string]*Binding),
		byKey:    make(map[bindingKey]*Binding),
		caps:     make(map[Capability]bool),
		zones:    make(map[int]bool),
		ampModes: make(map[int]Mode),
		presets:  make(map[string]string),
	}
}

// classified reports whether the dialect is known and its schema exists.
func (s *session) classified() bool {
	return s.catalog != nil
}

// materializeCommon creates the states every device has.
func (s *session) materializeCommon(ctx context.Context) error {
	for _, fn := range sortedFuncs(commonDefs) {
		if err := s.register(ctx, fn, commonDefs[fn], 0); err != nil {
			return err
		}
	}
	return nil
}

// classify fixes the dialect and materializes its device-level schema.
// On failure the session stays unclassified so the next classifying line
// retries.
func (s *session) classify(ctx context.Context, d Dialect) error {
	cat := CatalogFor(d)
	if cat == nil {
		return fmt.Errorf("no catalog for dialect %s", d)
	}
	for _, fn := range sortedFuncs(cat.Defs) {
		def := cat.Defs[fn]
		if def.Scope != ScopeDevice || def.Cap != CapNone {
			continue
		}
		if err := s.register(ctx, fn, def, 0); err != nil {
			return fmt.Errorf("materializing %s schema: %w", d, err)
		}
	}
	s.dialect = d
	s.catalog = cat
	return nil
}

// ensureZone materializes the zone-scoped states of zone once.
func (s *session) ensureZone(ctx context.Context, zone int) error {
	if s.zones[zone] {
		return nil
	}
	for _, fn := range sortedFuncs(s.catalog.Defs) {
		def := s.catalog.Defs[fn]
		if def.Scope != ScopeZone {
			continue
		}
		if err := s.register(ctx, fn, def, zone); err != nil {
			return fmt.Errorf("materializing zone %d: %w", zone, err)
		}
	}
	s.zones[zone] = true
	s.logger.Info("zone materialized", "zone", zone, "dialect", s.dialect.String())
	return nil
}

// ensureCapability materializes the states gated by c once. The flag never
// reverts.
func (s *session) ensureCapability(ctx context.Context, c Capability) error {
	if s.caps[c] {
		return nil
	}
	for _, fn := range sortedFuncs(s.catalog.Defs) {
		def := s.catalog.Defs[fn]
		if def.Cap != c || def.Scope != ScopeDevice {
			continue
		}
		if err := s.register(ctx, fn, def, 0); err != nil {
			return fmt.Errorf("materializing capability %s: %w", c, err)
		}
	}
	s.caps[c] = true
	s.logger.Info("capability detected", "capability", c.String())
	return nil
}

// register creates the object(s) for one definition and records bindings.
func (s *session) register(ctx context.Context, fn Func, def *Def, zone int) error {
	base := def.Path
	if def.Scope == ScopeZone {
		base = "zone" + strconv.Itoa(zone) + "." + def.Path
	}

	count := def.Count
	indexed := count > 0
	if !indexed {
		count = 1
	}
	for i := 0; i < count; i++ {
		path := base
		if indexed {
			path = base + strconv.Itoa(i)
		}
		if _, ok := s.bindings[path]; ok {
			continue
		}
		if err := s.store.ExtendObject(ctx, def.object(path)); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		b := &Binding{Func: fn, Def: def, Path: path, Zone: zone, Index: i}
		s.bindings[path] = b
		s.byKey[bindingKey{fn, zone, i}] = b
	}
	return nil
}

// binding returns the binding of fn in zone (0 for device scope).
func (s *session) binding(fn Func, zone, index int) (*Binding, bool) {
	b, ok := s.byKey[bindingKey{fn, zone, index}]
	return b, ok
}

// write stores a device-confirmed value.
func (s *session) write(ctx context.Context, fn Func, zone int, val any) error {
	return s.writeIndexed(ctx, fn, zone, 0, val)
}

func (s *session) writeIndexed(ctx context.Context, fn Func, zone, index int, val any) error {
	b, ok := s.binding(fn, zone, index)
	if !ok {
		return fmt.Errorf("%w: func %d zone %d not materialized", ErrUnmappedState, fn, zone)
	}
	return s.store.SetState(ctx, b.Path, val, true)
}

// writeIfChanged skips the write when the stored value is equal and
// already acknowledged.
func (s *session) writeIfChanged(ctx context.Context, fn Func, zone int, val any) error {
	b, ok := s.binding(fn, zone, 0)
	if !ok {
		return fmt.Errorf("%w: func %d zone %d not materialized", ErrUnmappedState, fn, zone)
	}
	cur, found, err := s.store.GetState(ctx, b.Path)
	if err != nil {
		return err
	}
	if found && cur.Ack && valuesEqual(cur.Val, val) {
		return nil
	}
	return s.store.SetState(ctx, b.Path, val, true)
}

// extendAndWrite appends label to the binding's enumeration when missing,
// then writes it.
func (s *session) extendAndWrite(ctx context.Context, fn Func, zone int, label string) error {
	b, ok := s.binding(fn, zone, 0)
	if !ok {
		return fmt.Errorf("%w: func %d zone %d not materialized", ErrUnmappedState, fn, zone)
	}
	obj, found, err := s.store.GetObject(ctx, b.Path)
	if err != nil {
		return err
	}
	if !found {
		obj = b.Def.object(b.Path)
	}
	if obj.States == nil {
		obj.States = &state.Enumeration{}
	}
	if !obj.States.HasLabel(label) {
		key := obj.States.Extend(label)
		if err := s.store.ExtendObject(ctx, obj); err != nil {
			return fmt.Errorf("extending %s: %w", b.Path, err)
		}
		s.logger.Info("enumeration extended", "path", b.Path, "label", label, "key", key)
	}
	return s.store.SetState(ctx, b.Path, label, true)
}

// enumeration returns the current enumeration of a binding, preferring the
// stored object so runtime extensions are honoured.
func (s *session) enumeration(ctx context.Context, b *Binding) *state.Enumeration {
	if obj, ok, err := s.store.GetObject(ctx, b.Path); err == nil && ok && obj.States != nil {
		return obj.States
	}
	return b.Def.Enumeration()
}

func valuesEqual(a, b any) bool {
	fa, okA := numeric(a)
	fb, okB := numeric(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func sortedFuncs(defs map[Func]*Def) []Func {
	fns := make([]Func, 0, len(defs))
	for fn := range defs {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i] < fns[j] })
	return fns
}
