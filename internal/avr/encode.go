package avr

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-avr/internal/state"
)

// encode turns a host state change into wire commands (without the
// trailing CR). A nil slice with a nil error means nothing to send, for
// example a button written false.
func (s *session) encode(ctx context.Context, change state.StateChange) ([]string, error) {
	b, ok := s.bindings[change.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnmappedState, change.ID)
	}
	def := b.Def

	switch def.Kind {
	case KindToggle:
		arg := def.Off
		if truthy(change.Value) {
			arg = def.On
		}
		return s.splice(b, def.Prefix, arg), nil

	case KindStep:
		if !truthy(change.Value) {
			return nil, nil
		}
		return s.splice(b, def.Prefix, def.Suffix), nil

	case KindButton:
		if !truthy(change.Value) {
			return nil, nil
		}
		return []string{def.Command}, nil

	case KindNumeric:
		v, err := s.number(def, change)
		if err != nil {
			return nil, err
		}
		return s.splice(b, def.Prefix, def.Format(v)), nil

	case KindEnum:
		query := text(change.Value)
		label := DecodeEnumValue(s.enumeration(ctx, b), query)
		token := strings.ToUpper(query)
		if label != "" {
			token = def.token(label)
		}
		if token == "" {
			return nil, fmt.Errorf("%w: empty value for %s", ErrInvalidValue, change.ID)
		}
		return s.splice(b, def.Prefix, token), nil

	case KindFanout:
		v, err := s.number(def, change)
		if err != nil {
			return nil, err
		}
		arg := def.Format(v)
		var cmds []string
		for _, p := range def.Prefixes {
			cmds = append(cmds, s.splice(b, p, arg)...)
		}
		return cmds, nil

	case KindRaw:
		cmd := strings.TrimSpace(text(change.Value))
		if cmd == "" {
			return nil, fmt.Errorf("%w: empty command", ErrInvalidValue)
		}
		return []string{cmd}, nil

	case KindNone, KindLocal:
		return nil, fmt.Errorf("%w: %s has no wire encoding", ErrUnmappedState, change.ID)
	}
	return nil, fmt.Errorf("%w: %s has unknown kind %d", ErrUnmappedState, change.ID, def.Kind)
}

// splice inserts the zone or channel addressing between prefix and arg.
func (s *session) splice(b *Binding, prefix, arg string) []string {
	if b.Def.Scope != ScopeZone {
		return []string{prefix + arg}
	}
	if s.dialect == DialectReceiver {
		return []string{"Z" + strconv.Itoa(b.Zone) + prefix + arg}
	}

	channels := []int{zoneChannel(b.Zone)}
	if b.Def.Speaker != 0 {
		channels = ChannelsFor(b.Zone, b.Def.Speaker, s.ampModes[b.Zone])
	}
	cmds := make([]string, 0, len(channels))
	for _, ch := range channels {
		cmds = append(cmds, prefix+Pad(ch, 2)+arg)
	}
	return cmds
}

// number converts and clamps a numeric host value.
func (s *session) number(def *Def, change state.StateChange) (float64, error) {
	v, ok := numeric(change.Value)
	if !ok {
		return 0, fmt.Errorf("%w: %s wants a number, got %v", ErrInvalidValue, change.ID, change.Value)
	}
	if def.Min != nil && v < *def.Min {
		v = *def.Min
	}
	if def.Max != nil && v > *def.Max {
		v = *def.Max
	}
	return v, nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "on", "1", "yes":
			return true
		}
		return false
	default:
		n, ok := numeric(v)
		return ok && n != 0
	}
}

// text renders a host value as the string a user would have typed;
// integral numbers lose their decimal point so "1" can match enum key 1.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		if n, ok := numeric(v); ok {
			if _, isBool := v.(bool); !isBool {
				return strconv.FormatFloat(n, 'f', -1, 64)
			}
		}
		return fmt.Sprint(v)
	}
}
