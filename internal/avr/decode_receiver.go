package avr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// decodeReceiver strips a Z<n> zone prefix into a side channel, then runs
// the zone rules or the main-zone rules followed by the exact table.
func (s *session) decodeReceiver(ctx context.Context, line string) error {
	if len(line) > 2 && line[0] == 'Z' && line[1] >= '2' && line[1] <= '9' {
		zone := int(line[1] - '0')
		if err := s.ensureZone(ctx, zone); err != nil {
			return err
		}
		return runRules(ctx, s, receiverZoneRules, line[2:], zone)
	}

	err := runRules(ctx, s, receiverRules, line, 0)
	if !errors.Is(err, errUnmatched) {
		return err
	}
	if handle, ok := receiverExact[canonicalKey(line)]; ok {
		return handle(ctx, s, line, 0)
	}
	return errUnmatched
}

// receiverRules are the main-zone prefix rules. Order matters where one
// prefix extends another (MSQUICK before MS, TFANNAME before TFAN,
// PSSWL2 before the PSSWL exact entry).
var receiverRules = []rule{
	{"display brightness", prefix("DIM"), func(ctx context.Context, s *session, line string, _ int) error {
		return s.writeToken(ctx, FuncDisplayBrightness, 0, strings.TrimSpace(line[3:]))
	}},
	{"input", prefix("SI"), func(ctx context.Context, s *session, line string, _ int) error {
		return s.decodeInput(ctx, FuncSelectInput, 0, line[2:])
	}},
	{"quick select", prefix("MSQUICK"), quickSelect(FuncQuickSelect, len("MSQUICK"))},
	{"smart select", prefix("MSSMART"), quickSelect(FuncQuickSelect, len("MSSMART"))},
	{"surround mode", prefix("MS"), func(ctx context.Context, s *session, line string, _ int) error {
		return s.writeEnumText(ctx, FuncSurroundMode, line[2:])
	}},
	{"display line", prefix("NSE"), func(ctx context.Context, s *session, line string, _ int) error {
		if len(line) < 4 || line[3] < '0' || line[3] > '8' {
			return errUnmatched
		}
		if err := s.ensureCapability(ctx, CapExtendedDisplay); err != nil {
			return err
		}
		return s.writeIndexed(ctx, FuncDisplayContent, 0, int(line[3]-'0'), printable(line[4:]))
	}},
	{"friendly name", prefix("NSFRN"), func(ctx context.Context, s *session, line string, _ int) error {
		name := strings.TrimSpace(line[5:])
		if name == "" || name == "?" {
			return errUnmatched
		}
		return s.write(ctx, FuncFriendlyName, 0, name)
	}},
	{"multeq", prefix("PSMULTEQ:"), func(ctx context.Context, s *session, line string, _ int) error {
		return s.writeEnumText(ctx, FuncMultEq, line[len("PSMULTEQ:"):])
	}},
	{"dynamic volume", prefix("PSDYNVOL"), func(ctx context.Context, s *session, line string, _ int) error {
		return s.writeToken(ctx, FuncDynamicVolume, 0, strings.TrimSpace(line[len("PSDYNVOL"):]))
	}},
	{"subwoofer two level", prefix("PSSWL2"), func(ctx context.Context, s *session, line string, _ int) error {
		db, err := WireToDB(strings.TrimSpace(line[len("PSSWL2"):]))
		if err != nil {
			return errUnmatched
		}
		if err := s.ensureCapability(ctx, CapDualSubwoofer); err != nil {
			return err
		}
		return s.write(ctx, FuncSubwooferTwoLevel, 0, db)
	}},
	{"output monitor", prefix("VSMONI"), capToken(CapMultiZoneMonitor, FuncOutputMonitor, len("VSMONI"))},
	{"video processing", prefix("VSVPM"), capToken(CapMultiZoneMonitor, FuncVideoProcessingMode, len("VSVPM"))},
	{"picture mode", prefix("PV"), capToken(CapPictureMode, FuncPictureMode, len("PV"))},
	{"online preset", prefix("OPTPN"), func(ctx context.Context, s *session, line string, _ int) error {
		rest := line[len("OPTPN"):]
		if len(rest) < 2 || !allDigits(rest[:2]) {
			return errUnmatched
		}
		s.presets[rest[:2]] = strings.TrimSpace(rest[2:])
		return s.write(ctx, FuncOnlinePresets, 0, presetsJSON(s.presets))
	}},
	{"station name", prefix("TFANNAME"), func(ctx context.Context, s *session, line string, _ int) error {
		return s.write(ctx, FuncStationName, 0, strings.TrimSpace(line[len("TFANNAME"):]))
	}},
	{"frequency", prefix("TFAN"), func(ctx context.Context, s *session, line string, _ int) error {
		digits := line[len("TFAN"):]
		if len(digits) != 6 || !allDigits(digits) {
			return errUnmatched
		}
		n, _ := strconv.Atoi(digits) //nolint:errcheck // digits checked
		return s.write(ctx, FuncFrequency, 0, float64(n)/100)
	}},
	{"channel volume", prefix("CV"), decodeChannelVolume},
	{"maximum volume", prefix("MVMAX"), func(ctx context.Context, s *session, line string, _ int) error {
		level, err := ParseWireLevel(strings.TrimSpace(line[len("MVMAX"):]))
		if err != nil {
			return errUnmatched
		}
		if err := s.write(ctx, FuncMaximumVolume, 0, level); err != nil {
			return err
		}
		return s.write(ctx, FuncMaximumVolumeDB, 0, level-dbOffset)
	}},
	{"volume", prefix("MV"), func(ctx context.Context, s *session, line string, _ int) error {
		level, err := ParseWireLevel(line[2:])
		if err != nil {
			return errUnmatched
		}
		if err := s.write(ctx, FuncVolume, 0, level); err != nil {
			return err
		}
		return s.write(ctx, FuncVolumeDB, 0, level-dbOffset)
	}},
}

type exactHandler func(ctx context.Context, s *session, line string, zone int) error

// receiverExact is keyed by canonicalKey(line).
var receiverExact = map[string]exactHandler{
	"PWON":      boolValue(FuncPowerSystem, true),
	"PWSTANDBY": boolValue(FuncPowerSystem, false),
	"ZMON":      boolValue(FuncMainPower, true),
	"ZMOFF":     boolValue(FuncMainPower, false),
	"MUON":      boolValue(FuncMute, true),
	"MUOFF":     boolValue(FuncMute, false),
	"SLPOFF":    sleepTimer(FuncSleepTimer),
	"SLP":       sleepTimer(FuncSleepTimer),
	"PSBAS":     dbValue(FuncBass),
	"PSTRE":     dbValue(FuncTreble),

	"PSTONECTRLON":  boolValue(FuncToneControl, true),
	"PSTONECTRLOFF": boolValue(FuncToneControl, false),
	"PSDYNEQON":     boolValue(FuncDynamicEq, true),
	"PSDYNEQOFF":    boolValue(FuncDynamicEq, false),
	"PSREFLEV":      intValue(FuncReferenceLevelOffset, CapNone),
	"PSSWL":         dbValue(FuncSubwooferLevel),
	"PSLFCON":       capBool(CapLFC, FuncLowFrequencyContainment, true),
	"PSLFCOFF":      capBool(CapLFC, FuncLowFrequencyContainment, false),
	"PSCNTAMT":      intValue(FuncContainmentAmount, CapLFC),
	"PSCESON":       boolValue(FuncCenterSpread, true),
	"PSCESOFF":      boolValue(FuncCenterSpread, false),
	"PSDILON":       boolValue(FuncDialogLevelAdjust, true),
	"PSDILOFF":      boolValue(FuncDialogLevelAdjust, false),
	"PSDIL":         dbValue(FuncDialogLevel),
	"PSDIC":         intValue(FuncDialogControl, CapNone),
	"MNMENON":       boolValue(FuncSetupMenu, true),
	"MNMENOFF":      boolValue(FuncSetupMenu, false),
	"SPPR":          intValue(FuncSpeakerPreset, CapSpeakerPreset),
}

// receiverZoneRules run on the text after "Z<n>".
var receiverZoneRules = []rule{
	{"zone mute", exact("MUON", "MUOFF"), func(ctx context.Context, s *session, line string, zone int) error {
		return s.write(ctx, FuncZoneMute, zone, line == "MUON")
	}},
	{"zone sleep", prefix("SLP"), sleepTimer(FuncZoneSleepTimer)},
	{"zone bass", prefix("PSBAS"), dbValue(FuncZoneBass)},
	{"zone treble", prefix("PSTRE"), dbValue(FuncZoneTreble)},
	{"zone quick select", prefix("QUICK"), quickSelect(FuncZoneQuickSelect, len("QUICK"))},
	{"zone smart select", prefix("SMART"), quickSelect(FuncZoneQuickSelect, len("SMART"))},
	{"zone power", exact("ON", "OFF"), func(ctx context.Context, s *session, line string, zone int) error {
		return s.write(ctx, FuncZonePower, zone, line == "ON")
	}},
	{"zone volume", func(line string) bool { return allDigits(line) && len(line) <= 3 }, func(ctx context.Context, s *session, line string, zone int) error {
		level, err := ParseWireLevel(line)
		if err != nil {
			return errUnmatched
		}
		return s.write(ctx, FuncZoneVolume, zone, level)
	}},
	{"zone input", isZoneInput, func(ctx context.Context, s *session, line string, zone int) error {
		return s.decodeInput(ctx, FuncZoneSelectInput, zone, line)
	}},
}

// zoneNonInputPrefixes are zone responses that are not input names.
var zoneNonInputPrefixes = []string{"CV", "PS", "HPF", "CS", "UP", "DOWN", "SSINFO", "HDA"}

func isZoneInput(line string) bool {
	if line == "" || line == "?" {
		return false
	}
	for _, p := range zoneNonInputPrefixes {
		if strings.HasPrefix(line, p) {
			return false
		}
	}
	for _, r := range line {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '/' || r == '.' || r == ' ') {
			return false
		}
	}
	return true
}

// decodeInput writes an input label, growing the enumeration when the
// receiver reports one it has not seen.
func (s *session) decodeInput(ctx context.Context, fn Func, zone int, raw string) error {
	label := strings.TrimSpace(raw)
	if label == "" || label == "?" {
		return errUnmatched
	}
	return s.extendAndWrite(ctx, fn, zone, label)
}

// writeToken maps a wire token to its label.
func (s *session) writeToken(ctx context.Context, fn Func, zone int, token string) error {
	b, ok := s.binding(fn, zone, 0)
	if !ok {
		return fmt.Errorf("%w: func %d", ErrUnmappedState, fn)
	}
	label := b.Def.label(token)
	if label == "" {
		return errUnmatched
	}
	return s.write(ctx, fn, zone, label)
}

// writeEnumText resolves free text against the enumeration and writes the
// canonical label, or the text itself when unknown.
func (s *session) writeEnumText(ctx context.Context, fn Func, raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" || text == "?" {
		return errUnmatched
	}
	b, ok := s.binding(fn, 0, 0)
	if !ok {
		return fmt.Errorf("%w: func %d", ErrUnmappedState, fn)
	}
	if label := DecodeEnumValue(s.enumeration(ctx, b), text); label != "" {
		text = label
	}
	return s.write(ctx, fn, 0, text)
}

func decodeChannelVolume(ctx context.Context, s *session, line string, _ int) error {
	fields := strings.Fields(line[2:])
	if len(fields) != 2 || fields[0] == "END" {
		return errUnmatched
	}
	token, level := fields[0], fields[1]
	db, err := WireToDB(level)
	if err != nil {
		return errUnmatched
	}

	switch token {
	case "SW2":
		if err := s.ensureCapability(ctx, CapDualSubwoofer); err != nil {
			return err
		}
		return s.write(ctx, FuncChannelVolumeSubwooferTwo, 0, db)
	case "SW":
		if s.caps[CapDualSubwoofer] {
			return s.write(ctx, FuncChannelVolumeSubwooferOne, 0, db)
		}
	}
	for _, cv := range channelVolumes {
		if cv.token == token {
			return s.write(ctx, cv.fn, 0, db)
		}
	}
	return errUnmatched
}

func boolValue(fn Func, v bool) exactHandler {
	return func(ctx context.Context, s *session, _ string, zone int) error {
		return s.write(ctx, fn, zone, v)
	}
}

func capBool(c Capability, fn Func, v bool) exactHandler {
	return func(ctx context.Context, s *session, _ string, zone int) error {
		if err := s.ensureCapability(ctx, c); err != nil {
			return err
		}
		return s.write(ctx, fn, zone, v)
	}
}

func dbValue(fn Func) exactHandler {
	return func(ctx context.Context, s *session, line string, zone int) error {
		db, err := WireToDB(trailingDigits(line))
		if err != nil {
			return errUnmatched
		}
		return s.write(ctx, fn, zone, db)
	}
}

func intValue(fn Func, c Capability) exactHandler {
	return func(ctx context.Context, s *session, line string, zone int) error {
		n, err := strconv.Atoi(trailingDigits(line))
		if err != nil {
			return errUnmatched
		}
		if c != CapNone {
			if err := s.ensureCapability(ctx, c); err != nil {
				return err
			}
		}
		return s.write(ctx, fn, zone, float64(n))
	}
}

func capToken(c Capability, fn Func, skip int) func(context.Context, *session, string, int) error {
	return func(ctx context.Context, s *session, line string, _ int) error {
		token := strings.TrimSpace(line[skip:])
		label := s.catalog.Defs[fn].label(token)
		if label == "" {
			return errUnmatched
		}
		if err := s.ensureCapability(ctx, c); err != nil {
			return err
		}
		return s.write(ctx, fn, 0, label)
	}
}

// sleepTimer decodes SLPOFF / SLP030 with change suppression.
func sleepTimer(fn Func) exactHandler {
	return func(ctx context.Context, s *session, line string, zone int) error {
		minutes := 0.0
		if !strings.HasSuffix(line, "OFF") {
			digits := trailingDigits(line)
			if digits == "" {
				return errUnmatched
			}
			n, _ := strconv.Atoi(digits) //nolint:errcheck // digits only
			minutes = float64(n)
		}
		return s.writeIfChanged(ctx, fn, zone, minutes)
	}
}

// quickSelect decodes QUICK1 / SMART1 style lines with change suppression.
func quickSelect(fn Func, skip int) func(context.Context, *session, string, int) error {
	return func(ctx context.Context, s *session, line string, zone int) error {
		fields := strings.Fields(line[skip:])
		if len(fields) == 0 || !allDigits(fields[0]) {
			return errUnmatched
		}
		n, _ := strconv.Atoi(fields[0]) //nolint:errcheck // digits only
		return s.writeIfChanged(ctx, fn, zone, float64(n))
	}
}

type preset struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
}

func presetsJSON(presets map[string]string) string {
	list := make([]preset, 0, len(presets))
	for id, ch := range presets {
		list = append(list, preset{ID: id, Channel: ch})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	raw, _ := json.Marshal(list) //nolint:errcheck // strings only
	return string(raw)
}
