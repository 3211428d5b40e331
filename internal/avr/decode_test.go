package avr

import (
	"context"
	"errors"
	"testing"
)

func TestDecode_Receiver(t *testing.T) {
	tests := []struct {
		line string
		id   string
		want any
	}{
		{"PWON", "settings.powerSystem", true},
		{"PWSTANDBY", "settings.powerSystem", false},
		{"ZMON", "zoneMain.powerZone", true},
		{"MV355", "zoneMain.volume", 35.5},
		{"MV355", "zoneMain.volumeDB", -14.5},
		{"MV40", "zoneMain.volume", 40.0},
		{"MVMAX 80", "zoneMain.maximumVolume", 80.0},
		{"MVMAX 80", "zoneMain.maximumVolumeDB", 30.0},
		{"MUON", "zoneMain.muteIndicator", true},
		{"SICD", "zoneMain.selectInput", "CD"},
		{"SLPOFF", "zoneMain.sleepTimer", 0.0},
		{"SLP090", "zoneMain.sleepTimer", 90.0},
		{"MSQUICK3", "zoneMain.quickSelect", 3.0},
		{"MSSMART4 MEMORY", "zoneMain.quickSelect", 4.0},
		{"MSSTEREO", "settings.surroundMode", "STEREO"},
		{"MSNEURAL:X", "settings.surroundMode", "NEURAL:X"},
		{"PSBAS 44", "zoneMain.equalizerBass", -6.0},
		{"PSTRE 50", "zoneMain.equalizerTreble", 0.0},
		{"PSTONE CTRL ON", "settings.toneControl", true},
		{"PSDYNEQ OFF", "settings.dynamicEq", false},
		{"PSMULTEQ:AUDYSSEY", "settings.multEq", "AUDYSSEY"},
		{"PSDYNVOL HEV", "settings.dynamicVolume", "Heavy"},
		{"PSREFLEV 10", "settings.referenceLevelOffset", 10.0},
		{"PSSWL 48", "settings.subwooferLevel", -2.0},
		{"PSDIL ON", "settings.dialogLevelAdjust", true},
		{"PSDIL 55", "settings.dialogLevel", 5.0},
		{"PSDIC 03", "settings.dialogControl", 3.0},
		{"CVFL 505", "zoneMain.channelVolumeFrontLeft", 0.5},
		{"CVSBL 50", "zoneMain.channelVolumeSurroundBackLeft", 0.0},
		{"DIM DAR", "display.brightness", "Dark"},
		{"NSFRNLiving Room", "info.friendlyName", "Living Room"},
		{"TFANNAMEBBC R4", "tuner.stationName", "BBC R4"},
		{"TFAN009370", "tuner.frequency", 93.7},
		{"MNMEN ON", "settings.setupMenu", true},
		{"Z2MUON", "zone2.muteIndicator", true},
		{"Z2SLP030", "zone2.sleepTimer", 30.0},
		{"Z2PSBAS 52", "zone2.equalizerBass", 2.0},
		{"Z2QUICK2", "zone2.quickSelect", 2.0},
		{"Z255", "zone2.volume", 55.0},
		{"Z3NET", "zone3.selectInput", "NET"},
	}
	for _, tt := range tests {
		s, store := newTestSession(t, DialectReceiver)
		if err := s.decode(context.Background(), tt.line); err != nil {
			t.Errorf("decode(%q) error = %v", tt.line, err)
			continue
		}
		st := mustState(t, store, tt.id)
		if !valuesEqual(st.Val, tt.want) || !st.Ack {
			t.Errorf("decode(%q): %s = %v (ack %v), want %v", tt.line, tt.id, st.Val, st.Ack, tt.want)
		}
	}
}

func TestDecode_ReceiverCapabilities(t *testing.T) {
	tests := []struct {
		line string
		cap  Capability
		id   string
		want any
	}{
		{"PSLFC ON", CapLFC, "settings.lowFrequencyContainment", true},
		{"PSCNTAMT 05", CapLFC, "settings.containmentAmount", 5.0},
		{"PVMOV", CapPictureMode, "settings.pictureMode", "Movie"},
		{"VSMONI2", CapMultiZoneMonitor, "settings.outputMonitor", "Monitor 2"},
		{"VSVPMGAME", CapMultiZoneMonitor, "settings.videoProcessingMode", "Game"},
		{"SPPR 2", CapSpeakerPreset, "settings.speakerPreset", 2.0},
		{"NSE1Now Playing", CapExtendedDisplay, "display.displayContent1", "Now Playing"},
		{"CVSW2 52", CapDualSubwoofer, "zoneMain.channelVolumeSubwooferTwo", 2.0},
	}
	for _, tt := range tests {
		s, store := newTestSession(t, DialectReceiver)
		if err := s.decode(context.Background(), tt.line); err != nil {
			t.Errorf("decode(%q) error = %v", tt.line, err)
			continue
		}
		if !s.caps[tt.cap] {
			t.Errorf("decode(%q) did not set %v", tt.line, tt.cap)
		}
		if st := mustState(t, store, tt.id); !valuesEqual(st.Val, tt.want) {
			t.Errorf("decode(%q): %s = %v, want %v", tt.line, tt.id, st.Val, tt.want)
		}
	}
}

func TestDecode_SubwooferRoutesByCapability(t *testing.T) {
	s, store := newTestSession(t, DialectReceiver)
	ctx := context.Background()

	if err := s.decode(ctx, "CVSW 52"); err != nil {
		t.Fatal(err)
	}
	if st := mustState(t, store, "zoneMain.channelVolumeSubwoofer"); st.Val != 2.0 {
		t.Errorf("single subwoofer = %v", st.Val)
	}

	if err := s.decode(ctx, "CVSW2 48"); err != nil {
		t.Fatal(err)
	}
	if err := s.decode(ctx, "CVSW 54"); err != nil {
		t.Fatal(err)
	}
	if st := mustState(t, store, "zoneMain.channelVolumeSubwooferOne"); st.Val != 4.0 {
		t.Errorf("subwoofer one = %v, want 4", st.Val)
	}
}

func TestDecode_OnlinePresets(t *testing.T) {
	s, store := newTestSession(t, DialectReceiver)
	ctx := context.Background()
	for _, line := range []string{"OPTPN02 Radio Two", "OPTPN01 Jazz FM"} {
		if err := s.decode(ctx, line); err != nil {
			t.Fatalf("decode(%q) error = %v", line, err)
		}
	}
	want := `[{"id":"01","channel":"Jazz FM"},{"id":"02","channel":"Radio Two"}]`
	if st := mustState(t, store, "info.onlinePresets"); st.Val != want {
		t.Errorf("onlinePresets = %v, want %s", st.Val, want)
	}
}

func TestDecode_Unmatched(t *testing.T) {
	s, _ := newTestSession(t, DialectReceiver)
	for _, line := range []string{"XYZZY", "MVabc", "SI?", "CVEND", "Z2CVFL 50", "TFAN12"} {
		if err := s.decode(context.Background(), line); !errors.Is(err, errUnmatched) {
			t.Errorf("decode(%q) error = %v, want unmatched", line, err)
		}
	}
}

func TestDecode_Amplifier(t *testing.T) {
	tests := []struct {
		line string
		id   string
		want any
	}{
		{"SPON", "settings.powerSystem", true},
		{"SPSTBY", "settings.powerSystem", false},
		{"BR3", "settings.brightness", "Bright"},
		{"SV01050", "zone1.speakerOneVolume", -45.0},
		{"SV02305", "zone1.speakerTwoVolume", -19.5},
		{"SV0430", "zone2.speakerTwoVolume", -20.0},
		{"SM03ON", "zone2.speakerOneMute", true},
		{"OM05NOR", "zone3.operationMode", "NORMAL"},
		{"SI01A", "zone1.selectInput", "A"},
		{"TO01AUD", "zone1.turnOnMode", "Audio"},
		{"TR01ON", "zone1.triggerInput", true},
		{"AS07OFF", "zone4.audioSignal", false},
	}
	for _, tt := range tests {
		s, store := newTestSession(t, DialectAmplifier)
		if err := s.decode(context.Background(), tt.line); err != nil {
			t.Errorf("decode(%q) error = %v", tt.line, err)
			continue
		}
		st := mustState(t, store, tt.id)
		if !valuesEqual(st.Val, tt.want) || !st.Ack {
			t.Errorf("decode(%q): %s = %v, want %v", tt.line, tt.id, st.Val, tt.want)
		}
	}
}

func TestDecode_AmplifierBridgedRouting(t *testing.T) {
	s, store := newTestSession(t, DialectAmplifier)
	ctx := context.Background()

	for _, line := range []string{"OM01BRI", "SV01400"} {
		if err := s.decode(ctx, line); err != nil {
			t.Fatalf("decode(%q) error = %v", line, err)
		}
	}
	for _, id := range []string{"zone1.speakerOneVolume", "zone1.speakerTwoVolume"} {
		if st := mustState(t, store, id); st.Val != -10.0 {
			t.Errorf("%s = %v, want -10", id, st.Val)
		}
	}

	before := store.setCount("zone1.speakerTwoVolume")
	if err := s.decode(ctx, "SV02300"); err != nil {
		t.Fatal(err)
	}
	if store.setCount("zone1.speakerTwoVolume") != before {
		t.Error("even channel updated a bridged zone")
	}
}

func TestDecode_AmplifierEvenChannelZoneAttributesIgnored(t *testing.T) {
	s, store := newTestSession(t, DialectAmplifier)
	if err := s.decode(context.Background(), "OM02BRI"); err != nil {
		t.Fatal(err)
	}
	if s.ampModes[1] != ModeNormal {
		t.Error("even channel changed the zone mode")
	}
	if store.setCount("zone1.operationMode") != 0 {
		t.Error("even channel wrote the zone mode")
	}
}

func TestDecode_BeforeClassification(t *testing.T) {
	s, _ := newTestSession(t, DialectUnknown)
	if err := s.decode(context.Background(), "MV35"); !errors.Is(err, errUnmatched) {
		t.Errorf("decode before classification = %v", err)
	}
}
