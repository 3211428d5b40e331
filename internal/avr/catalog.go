package avr

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-avr/internal/state"
)

// Dialect is the protocol family spoken by the connected device.
type Dialect int

// Dialects.
const (
	DialectUnknown Dialect = iota
	// DialectReceiver is the AV receiver grammar (MV, PW, SI, Z2...).
	DialectReceiver
	// DialectAmplifier is the multi-channel amplifier grammar (SV, SM, OM...).
	DialectAmplifier
)

func (d Dialect) String() string {
	switch d {
	case DialectReceiver:
		return "receiver"
	case DialectAmplifier:
		return "amplifier"
	default:
		return "unknown"
	}
}

// ParseDialect maps a config value to a Dialect. "" and "auto" are unknown.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "", "auto":
		return DialectUnknown, nil
	case "receiver":
		return DialectReceiver, nil
	case "amplifier":
		return DialectAmplifier, nil
	default:
		return DialectUnknown, fmt.Errorf("unknown dialect %q", s)
	}
}

// Kind is how a state change is encoded on the wire.
type Kind int

// Encoding kinds. The encoder switches over these exhaustively.
const (
	// KindNone marks read-only states.
	KindNone Kind = iota
	// KindToggle sends Prefix+On or Prefix+Off.
	KindToggle
	// KindButton sends Command when written true.
	KindButton
	// KindStep sends Prefix+Suffix when written true (UP/DOWN).
	KindStep
	// KindNumeric sends Prefix+Format(value).
	KindNumeric
	// KindEnum sends Prefix+token of the resolved label.
	KindEnum
	// KindFanout sends every Prefixes[i]+Format(value).
	KindFanout
	// KindRaw sends the value verbatim.
	KindRaw
	// KindLocal is handled by the bridge without touching the wire.
	KindLocal
)

// Scope says where a definition is materialized.
type Scope int

// Scopes.
const (
	// ScopeDevice states exist once per device.
	ScopeDevice Scope = iota
	// ScopeZone states are created per zone on first traffic.
	ScopeZone
)

// Capability gates a group of optional states.
type Capability int

// Capabilities.
const (
	CapNone Capability = iota
	CapExtendedDisplay
	CapDualSubwoofer
	CapLFC
	CapPictureMode
	CapMultiZoneMonitor
	CapSpeakerPreset
)

func (c Capability) String() string {
	switch c {
	case CapExtendedDisplay:
		return "extendedDisplay"
	case CapDualSubwoofer:
		return "dualSubwoofer"
	case CapLFC:
		return "lfc"
	case CapPictureMode:
		return "pictureMode"
	case CapMultiZoneMonitor:
		return "multiZoneMonitor"
	case CapSpeakerPreset:
		return "speakerPreset"
	default:
		return "none"
	}
}

// Def is one catalog entry: where the state lives, what it looks like to
// the host, and how it is encoded.
type Def struct {
	// Path is the full dotted path for ScopeDevice, or the leaf name
	// appended to "zone<N>." for ScopeZone.
	Path  string
	Scope Scope
	Cap   Capability

	// Count > 0 materializes Path0..Path<Count-1> (display lines).
	Count int

	Name string
	Role string
	Type state.ValueType
	// Write is implied by Kind; Read is always true.
	Min, Max *float64
	Unit     string
	States   []string
	// Tokens are the wire spellings of States, index for index.
	// Empty means the label is its own token.
	Tokens []string
	// Extends marks enumerations that grow when the device reports an
	// unknown label.
	Extends bool

	Kind     Kind
	Prefix   string
	On, Off  string
	Suffix   string
	Command  string
	Prefixes []string
	Format   func(float64) string

	// Speaker pins an amplifier definition to one side of the zone.
	Speaker Speaker
}

// Writable reports whether the host may write the state.
func (d *Def) Writable() bool {
	return d.Kind != KindNone
}

// Enumeration returns a fresh enumeration of the definition's labels.
func (d *Def) Enumeration() *state.Enumeration {
	if len(d.States) == 0 && !d.Extends {
		return nil
	}
	return state.NewEnumeration(d.States...)
}

// token returns the wire token for label.
func (d *Def) token(label string) string {
	for i, l := range d.States {
		if l == label && i < len(d.Tokens) {
			return d.Tokens[i]
		}
	}
	return label
}

// label returns the label for a wire token, or "" when unknown.
func (d *Def) label(token string) string {
	if len(d.Tokens) == 0 {
		for _, l := range d.States {
			if l == token {
				return l
			}
		}
		return ""
	}
	for i, t := range d.Tokens {
		if t == token && i < len(d.States) {
			return d.States[i]
		}
	}
	return ""
}

// object builds the host object for a materialized path.
func (d *Def) object(path string) state.Object {
	return state.Object{
		ID:     path,
		Name:   d.Name,
		Role:   d.Role,
		Type:   d.Type,
		Read:   true,
		Write:  d.Writable(),
		Min:    d.Min,
		Max:    d.Max,
		Unit:   d.Unit,
		States: d.Enumeration(),
	}
}

// Catalog maps every Func of a dialect to its definition and lists the
// commands that refresh and poll the device.
type Catalog struct {
	Dialect Dialect
	Defs    map[Func]*Def
	// Update is queued in order after classification and on reconnect.
	Update []string
	// Poll is queued after the poll interval passes without traffic.
	Poll []string
}

// CatalogFor returns the catalog of a dialect.
func CatalogFor(d Dialect) *Catalog {
	switch d {
	case DialectReceiver:
		return receiverCatalog
	case DialectAmplifier:
		return amplifierCatalog
	default:
		return nil
	}
}

// commonDefs exist for every device regardless of dialect.
var commonDefs = map[Func]*Def{
	FuncConnection: {
		Path: "info.connection", Name: "Connected to receiver", Role: "indicator.connected",
		Type: state.TypeBoolean,
	},
	FuncExpertCommand: {
		Path: "settings.expertCommand", Name: "Raw command", Role: "text",
		Type: state.TypeString, Kind: KindRaw,
	},
	FuncExpertReadingPattern: {
		Path: "settings.expertReadingPattern", Name: "Response filter pattern", Role: "text",
		Type: state.TypeString, Kind: KindLocal,
	},
	FuncExpertReadingResult: {
		Path: "settings.expertReadingResult", Name: "Last filtered response", Role: "text",
		Type: state.TypeString,
	},
}

// Formatters shared by both catalogs.
var (
	formatInt = func(v float64) string { return strconv.Itoa(int(v)) }
	pad2      = func(v float64) string { return Pad(int(v), 2) }
	sleepArg  = func(v float64) string {
		if v <= 0 {
			return "OFF"
		}
		return Pad(int(v), 3)
	}
)
