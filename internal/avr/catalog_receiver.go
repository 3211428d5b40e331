package avr

import (
	"github.com/nerrad567/gray-logic-avr/internal/state"
)

var (
	levelMin, levelMax = state.Float(0), state.Float(98)
	dbMin, dbMax       = state.Float(-50), state.Float(48)
	trimMin, trimMax   = state.Float(-12), state.Float(12)
	toneMin, toneMax   = state.Float(-6), state.Float(6)
)

// receiverInputs are the default input labels; the enumeration grows when
// the receiver reports a renamed or unlisted source.
var receiverInputs = []string{
	"PHONO", "CD", "TUNER", "DVD", "BD", "TV", "SAT/CBL", "MPLAY", "GAME", "NET", "AUX1", "BT",
}

var surroundModes = []string{
	"MOVIE", "MUSIC", "GAME", "DIRECT", "PURE DIRECT", "STEREO", "AUTO",
	"DOLBY DIGITAL", "DTS SURROUND", "MCH STEREO", "ROCK ARENA", "JAZZ CLUB",
	"MONO MOVIE", "MATRIX", "VIDEO GAME", "VIRTUAL",
}

// channelVolumes maps the CV token to its label and Func.
var channelVolumes = []struct {
	token string
	label string
	fn    Func
}{
	{"FL", "FrontLeft", FuncChannelVolumeFrontLeft},
	{"FR", "FrontRight", FuncChannelVolumeFrontRight},
	{"C", "Center", FuncChannelVolumeCenter},
	{"SW", "Subwoofer", FuncChannelVolumeSubwoofer},
	{"SL", "SurroundLeft", FuncChannelVolumeSurroundLeft},
	{"SR", "SurroundRight", FuncChannelVolumeSurroundRight},
	{"SBL", "SurroundBackLeft", FuncChannelVolumeSurroundBackLeft},
	{"SBR", "SurroundBackRight", FuncChannelVolumeSurroundBackRight},
	{"SB", "SurroundBack", FuncChannelVolumeSurroundBack},
	{"FHL", "FrontHeightLeft", FuncChannelVolumeFrontHeightLeft},
	{"FHR", "FrontHeightRight", FuncChannelVolumeFrontHeightRight},
	{"FWL", "FrontWideLeft", FuncChannelVolumeFrontWideLeft},
	{"FWR", "FrontWideRight", FuncChannelVolumeFrontWideRight},
}

var receiverCatalog = buildReceiverCatalog()

func toggle(path, name, role, prefix, on, off string) *Def {
	return &Def{Path: path, Name: name, Role: role, Type: state.TypeBoolean,
		Kind: KindToggle, Prefix: prefix, On: on, Off: off}
}

func step(path, name, prefix, suffix string) *Def {
	return &Def{Path: path, Name: name, Role: "button", Type: state.TypeBoolean,
		Kind: KindStep, Prefix: prefix, Suffix: suffix}
}

func button(path, name, command string) *Def {
	return &Def{Path: path, Name: name, Role: "button", Type: state.TypeBoolean,
		Kind: KindButton, Command: command}
}

func dbLevel(path, name, prefix string, lo, hi *float64) *Def {
	return &Def{Path: path, Name: name, Role: "level", Type: state.TypeNumber,
		Min: lo, Max: hi, Unit: "dB", Kind: KindNumeric, Prefix: prefix, Format: DBToWire}
}

func readOnly(path, name, role string, t state.ValueType) *Def {
	return &Def{Path: path, Name: name, Role: role, Type: t}
}

func buildReceiverCatalog() *Catalog {
	defs := map[Func]*Def{
		FuncPowerSystem: toggle("settings.powerSystem", "Main power", "switch.power", "PW", "ON", "STANDBY"),

		FuncMainPower: toggle("zoneMain.powerZone", "Main zone power", "switch.power.zone", "ZM", "ON", "OFF"),
		FuncVolume: {Path: "zoneMain.volume", Name: "Volume", Role: "level.volume", Type: state.TypeNumber,
			Min: levelMin, Max: levelMax, Kind: KindNumeric, Prefix: "MV", Format: VolumeToWire},
		FuncVolumeDB: {Path: "zoneMain.volumeDB", Name: "Volume dB", Role: "level.volume", Type: state.TypeNumber,
			Min: dbMin, Max: dbMax, Unit: "dB", Kind: KindNumeric, Prefix: "MV", Format: DBToWire},
		FuncVolumeUp:        step("zoneMain.volumeUp", "Volume up", "MV", "UP"),
		FuncVolumeDown:      step("zoneMain.volumeDown", "Volume down", "MV", "DOWN"),
		FuncMaximumVolume:   {Path: "zoneMain.maximumVolume", Name: "Maximum volume", Role: "value.volume.max", Type: state.TypeNumber, Min: levelMin, Max: levelMax},
		FuncMaximumVolumeDB: {Path: "zoneMain.maximumVolumeDB", Name: "Maximum volume dB", Role: "value.volume.max", Type: state.TypeNumber, Unit: "dB"},
		FuncMute:            toggle("zoneMain.muteIndicator", "Mute", "media.mute", "MU", "ON", "OFF"),
		FuncSelectInput: {Path: "zoneMain.selectInput", Name: "Select input", Role: "media.input", Type: state.TypeString,
			States: receiverInputs, Extends: true, Kind: KindEnum, Prefix: "SI"},
		FuncSleepTimer: {Path: "zoneMain.sleepTimer", Name: "Sleep timer", Role: "level.timer.sleep", Type: state.TypeNumber,
			Min: state.Float(0), Max: state.Float(120), Unit: "min", Kind: KindNumeric, Prefix: "SLP", Format: sleepArg},
		FuncQuickSelect: {Path: "zoneMain.quickSelect", Name: "Quick select", Role: "media.quickSelect", Type: state.TypeNumber,
			Min: state.Float(1), Max: state.Float(5), Kind: KindFanout, Prefixes: []string{"MSQUICK", "MSSMART"}, Format: formatInt},
		FuncBass:       dbLevel("zoneMain.equalizerBass", "Bass", "PSBAS ", toneMin, toneMax),
		FuncTreble:     dbLevel("zoneMain.equalizerTreble", "Treble", "PSTRE ", toneMin, toneMax),
		FuncBassUp:     step("zoneMain.equalizerBassUp", "Bass up", "PSBAS ", "UP"),
		FuncBassDown:   step("zoneMain.equalizerBassDown", "Bass down", "PSBAS ", "DOWN"),
		FuncTrebleUp:   step("zoneMain.equalizerTrebleUp", "Treble up", "PSTRE ", "UP"),
		FuncTrebleDown: step("zoneMain.equalizerTrebleDown", "Treble down", "PSTRE ", "DOWN"),

		FuncSurroundMode: {Path: "settings.surroundMode", Name: "Surround mode", Role: "media.mode.sound", Type: state.TypeString,
			States: surroundModes, Kind: KindEnum, Prefix: "MS"},
		FuncToneControl: toggle("settings.toneControl", "Tone control", "switch", "PSTONE CTRL ", "ON", "OFF"),
		FuncDynamicEq:   toggle("settings.dynamicEq", "Dynamic EQ", "switch", "PSDYNEQ ", "ON", "OFF"),
		FuncMultEq: {Path: "settings.multEq", Name: "MultEQ", Role: "media.mode", Type: state.TypeString,
			States: []string{"AUDYSSEY", "BYP.LR", "FLAT", "MANUAL", "OFF"}, Kind: KindEnum, Prefix: "PSMULTEQ:"},
		FuncDynamicVolume: {Path: "settings.dynamicVolume", Name: "Dynamic volume", Role: "media.mode", Type: state.TypeString,
			States: []string{"Heavy", "Medium", "Light", "Off"}, Tokens: []string{"HEV", "MED", "LIT", "OFF"},
			Kind: KindEnum, Prefix: "PSDYNVOL "},
		FuncReferenceLevelOffset: {Path: "settings.referenceLevelOffset", Name: "Reference level offset", Role: "level", Type: state.TypeNumber,
			Min: state.Float(0), Max: state.Float(15), Unit: "dB", Kind: KindNumeric, Prefix: "PSREFLEV ", Format: formatInt},
		FuncSubwooferLevel:    dbLevel("settings.subwooferLevel", "Subwoofer level", "PSSWL ", trimMin, trimMax),
		FuncSubwooferTwoLevel: withCap(dbLevel("settings.subwooferTwoLevel", "Subwoofer two level", "PSSWL2 ", trimMin, trimMax), CapDualSubwoofer),
		FuncLowFrequencyContainment: withCap(toggle("settings.lowFrequencyContainment", "Low frequency containment", "switch",
			"PSLFC ", "ON", "OFF"), CapLFC),
		FuncContainmentAmount: withCap(&Def{Path: "settings.containmentAmount", Name: "Containment amount", Role: "level", Type: state.TypeNumber,
			Min: state.Float(1), Max: state.Float(7), Kind: KindNumeric, Prefix: "PSCNTAMT ", Format: pad2}, CapLFC),
		FuncCenterSpread:      toggle("settings.centerSpread", "Center spread", "switch", "PSCES ", "ON", "OFF"),
		FuncDialogLevelAdjust: toggle("settings.dialogLevelAdjust", "Dialog level adjust", "switch", "PSDIL ", "ON", "OFF"),
		FuncDialogLevel:       dbLevel("settings.dialogLevel", "Dialog level", "PSDIL ", trimMin, trimMax),
		FuncDialogControl: {Path: "settings.dialogControl", Name: "Dialog control", Role: "level", Type: state.TypeNumber,
			Min: state.Float(0), Max: state.Float(6), Kind: KindNumeric, Prefix: "PSDIC ", Format: pad2},
		FuncSetupMenu:    toggle("settings.setupMenu", "Setup menu", "switch", "MNMEN ", "ON", "OFF"),
		FuncCursorUp:     button("settings.cursorUp", "Cursor up", "MNCUP"),
		FuncCursorDown:   button("settings.cursorDown", "Cursor down", "MNCDN"),
		FuncCursorLeft:   button("settings.cursorLeft", "Cursor left", "MNCLT"),
		FuncCursorRight:  button("settings.cursorRight", "Cursor right", "MNCRT"),
		FuncCursorEnter:  button("settings.cursorEnter", "Enter", "MNENT"),
		FuncCursorReturn: button("settings.cursorReturn", "Return", "MNRTN"),
		FuncOutputMonitor: withCap(&Def{Path: "settings.outputMonitor", Name: "Output monitor", Role: "media.mode", Type: state.TypeString,
			States: []string{"Auto", "Monitor 1", "Monitor 2"}, Tokens: []string{"AUTO", "1", "2"},
			Kind: KindEnum, Prefix: "VSMONI"}, CapMultiZoneMonitor),
		FuncVideoProcessingMode: withCap(&Def{Path: "settings.videoProcessingMode", Name: "Video processing mode", Role: "media.mode", Type: state.TypeString,
			States: []string{"Auto", "Game", "Movie", "Bypass"}, Tokens: []string{"AUTO", "GAME", "MOVI", "BYP"},
			Kind: KindEnum, Prefix: "VSVPM"}, CapMultiZoneMonitor),
		FuncPictureMode: withCap(&Def{Path: "settings.pictureMode", Name: "Picture mode", Role: "media.mode", Type: state.TypeString,
			States: []string{"Off", "Standard", "Movie", "Vivid", "Stream", "Custom", "ISF Day", "ISF Night"},
			Tokens: []string{"OFF", "STD", "MOV", "VVD", "STM", "CTM", "DAY", "NGT"},
			Kind:   KindEnum, Prefix: "PV"}, CapPictureMode),
		FuncSpeakerPreset: withCap(&Def{Path: "settings.speakerPreset", Name: "Speaker preset", Role: "level", Type: state.TypeNumber,
			Min: state.Float(1), Max: state.Float(2), Kind: KindNumeric, Prefix: "SPPR ", Format: formatInt}, CapSpeakerPreset),

		FuncDisplayBrightness: {Path: "display.brightness", Name: "Display brightness", Role: "level.dimmer", Type: state.TypeString,
			States: []string{"Bright", "Dim", "Dark", "Off"}, Tokens: []string{"BRI", "DIM", "DAR", "OFF"},
			Kind: KindEnum, Prefix: "DIM "},
		FuncDisplayContent: withCap(&Def{Path: "display.displayContent", Count: 9, Name: "Display line", Role: "info.display",
			Type: state.TypeString}, CapExtendedDisplay),

		FuncFriendlyName:  readOnly("info.friendlyName", "Friendly name", "info.name", state.TypeString),
		FuncOnlinePresets: readOnly("info.onlinePresets", "Online presets", "info.presets", state.TypeJSON),

		FuncStationName:   readOnly("tuner.stationName", "Station name", "media.station", state.TypeString),
		FuncFrequency:     {Path: "tuner.frequency", Name: "Frequency", Role: "value.frequency", Type: state.TypeNumber, Unit: "MHz"},
		FuncFrequencyUp:   step("tuner.frequencyUp", "Frequency up", "TFAN", "UP"),
		FuncFrequencyDown: step("tuner.frequencyDown", "Frequency down", "TFAN", "DOWN"),

		FuncZonePower: zone(toggle("powerZone", "Zone power", "switch.power.zone", "", "ON", "OFF")),
		FuncZoneVolume: zone(&Def{Path: "volume", Name: "Zone volume", Role: "level.volume", Type: state.TypeNumber,
			Min: levelMin, Max: levelMax, Kind: KindNumeric, Format: VolumeToWire}),
		FuncZoneVolumeUp:   zone(step("volumeUp", "Zone volume up", "", "UP")),
		FuncZoneVolumeDown: zone(step("volumeDown", "Zone volume down", "", "DOWN")),
		FuncZoneMute:       zone(toggle("muteIndicator", "Zone mute", "media.mute", "MU", "ON", "OFF")),
		FuncZoneSelectInput: zone(&Def{Path: "selectInput", Name: "Zone input", Role: "media.input", Type: state.TypeString,
			States: receiverInputs, Extends: true, Kind: KindEnum}),
		FuncZoneSleepTimer: zone(&Def{Path: "sleepTimer", Name: "Zone sleep timer", Role: "level.timer.sleep", Type: state.TypeNumber,
			Min: state.Float(0), Max: state.Float(120), Unit: "min", Kind: KindNumeric, Prefix: "SLP", Format: sleepArg}),
		FuncZoneBass:   zone(dbLevel("equalizerBass", "Zone bass", "PSBAS ", toneMin, toneMax)),
		FuncZoneTreble: zone(dbLevel("equalizerTreble", "Zone treble", "PSTRE ", toneMin, toneMax)),
		FuncZoneQuickSelect: zone(&Def{Path: "quickSelect", Name: "Zone quick select", Role: "media.quickSelect", Type: state.TypeNumber,
			Min: state.Float(1), Max: state.Float(5), Kind: KindFanout, Prefixes: []string{"QUICK", "SMART"}, Format: formatInt}),
	}

	for _, cv := range channelVolumes {
		defs[cv.fn] = dbLevel("zoneMain.channelVolume"+cv.label, "Channel volume "+cv.label, "CV"+cv.token+" ", trimMin, trimMax)
	}
	defs[FuncChannelVolumeSubwooferOne] = withCap(dbLevel("zoneMain.channelVolumeSubwooferOne", "Channel volume SubwooferOne",
		"CVSW ", trimMin, trimMax), CapDualSubwoofer)
	defs[FuncChannelVolumeSubwooferTwo] = withCap(dbLevel("zoneMain.channelVolumeSubwooferTwo", "Channel volume SubwooferTwo",
		"CVSW2 ", trimMin, trimMax), CapDualSubwoofer)

	return &Catalog{
		Dialect: DialectReceiver,
		Defs:    defs,
		Update: []string{
			"PW?", "ZM?", "MU?", "SI?", "MV?", "MS?", "SLP?", "PSBAS ?", "PSTRE ?", "PSTONE CTRL ?",
			"PSDYNEQ ?", "PSMULTEQ: ?", "PSDYNVOL ?", "PSREFLEV ?", "PSSWL ?", "PSLFC ?", "PSCNTAMT ?",
			"PSCES ?", "PSDIL ?", "PSDIC ?", "MSQUICK ?", "MSSMART ?", "DIM ?", "VSMONI ?", "VSVPM ?",
			"PV?", "SPPR ?", "NSFRN ?", "CV?", "TFANNAME?", "TFAN?", "OPTPN ?",
			"Z2?", "Z2MU?", "Z2SLP?", "Z3?", "Z3MU?", "Z3SLP?",
		},
		Poll: []string{"NSE", "MV?", "SLP?", "Z2SLP?", "Z3SLP?"},
	}
}

func withCap(d *Def, c Capability) *Def {
	d.Cap = c
	return d
}

func zone(d *Def) *Def {
	d.Scope = ScopeZone
	return d
}
