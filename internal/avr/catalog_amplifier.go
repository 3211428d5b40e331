package avr

import "github.com/nerrad567/gray-logic-avr/internal/state"

var amplifierCatalog = &Catalog{
	Dialect: DialectAmplifier,
	Defs: map[Func]*Def{
		FuncPowerSystem: toggle("settings.powerSystem", "Amplifier power", "switch.power", "SP", "ON", "STBY"),
		FuncAmpBrightness: {Path: "settings.brightness", Name: "Front panel brightness", Role: "level.dimmer", Type: state.TypeString,
			States: []string{"Off", "Dark", "Dim", "Bright"}, Tokens: []string{"0", "1", "2", "3"},
			Kind: KindEnum, Prefix: "BR"},

		FuncSpeakerOneVolume: speaker(speakerLevel("speakerOneVolume", "Speaker one volume"), SpeakerOne),
		FuncSpeakerTwoVolume: speaker(speakerLevel("speakerTwoVolume", "Speaker two volume"), SpeakerTwo),
		FuncSpeakerOneMute:   speaker(toggle("speakerOneMute", "Speaker one mute", "media.mute", "SM", "ON", "OFF"), SpeakerOne),
		FuncSpeakerTwoMute:   speaker(toggle("speakerTwoMute", "Speaker two mute", "media.mute", "SM", "ON", "OFF"), SpeakerTwo),
		FuncOperationMode: zone(&Def{Path: "operationMode", Name: "Operation mode", Role: "media.mode", Type: state.TypeString,
			States: []string{"NORMAL", "BRIDGED"}, Tokens: []string{"NOR", "BRI"}, Kind: KindEnum, Prefix: "OM"}),
		FuncAmpSelectInput: zone(&Def{Path: "selectInput", Name: "Zone input", Role: "media.input", Type: state.TypeString,
			States: []string{"A", "B"}, Extends: true, Kind: KindEnum, Prefix: "SI"}),
		FuncTurnOnMode: zone(&Def{Path: "turnOnMode", Name: "Turn-on mode", Role: "media.mode", Type: state.TypeString,
			States: []string{"Constant", "Trigger", "Audio"}, Tokens: []string{"CON", "TRG", "AUD"}, Kind: KindEnum, Prefix: "TO"}),
		FuncTriggerInput: zone(readOnly("triggerInput", "Trigger input", "indicator", state.TypeBoolean)),
		FuncAudioSignal:  zone(readOnly("audioSignal", "Audio signal", "indicator", state.TypeBoolean)),
	},
	Update: []string{"SP?", "BR?", "SV?", "SM?", "OM?", "SI?", "TO?", "TR?", "AS?"},
	Poll:   []string{"SP?", "SV?"},
}

// speakerLevel is a per-speaker dB level in the three-digit level form.
func speakerLevel(path, name string) *Def {
	d := dbLevel(path, name, "SV", dbMin, dbMax)
	d.Format = threeDigitLevel
	return d
}

func speaker(d *Def, sp Speaker) *Def {
	d.Scope = ScopeZone
	d.Speaker = sp
	return d
}
