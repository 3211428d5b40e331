package avr

import (
	"context"
	"regexp"
	"strconv"
)

var (
	ampPowerRe   = regexp.MustCompile(`^SP(ON|STBY)$`)
	ampBrightRe  = regexp.MustCompile(`^BR([0-3])$`)
	ampVolumeRe  = regexp.MustCompile(`^SV(\d{2})(\d{2,3})$`)
	ampMuteRe    = regexp.MustCompile(`^SM(\d{2})(ON|OFF)$`)
	ampModeRe    = regexp.MustCompile(`^OM(\d{2})(NOR|BRI)$`)
	ampInputRe   = regexp.MustCompile(`^SI(\d{2})(.+)$`)
	ampTurnOnRe  = regexp.MustCompile(`^TO(\d{2})(CON|TRG|AUD)$`)
	ampTriggerRe = regexp.MustCompile(`^TR(\d{2})(ON|OFF)$`)
	ampSignalRe  = regexp.MustCompile(`^AS(\d{2})(ON|OFF)$`)
)

func matches(re *regexp.Regexp) func(string) bool {
	return re.MatchString
}

// amplifierRules decode the amplifier grammar. Per-speaker responses are
// routed through RouteResponse; zone-level responses are only honoured on
// the zone's odd channel.
var amplifierRules = []rule{
	{"power", matches(ampPowerRe), func(ctx context.Context, s *session, line string, _ int) error {
		return s.write(ctx, FuncPowerSystem, 0, ampPowerRe.FindStringSubmatch(line)[1] == "ON")
	}},
	{"brightness", matches(ampBrightRe), func(ctx context.Context, s *session, line string, _ int) error {
		return s.writeToken(ctx, FuncAmpBrightness, 0, ampBrightRe.FindStringSubmatch(line)[1])
	}},
	{"speaker volume", matches(ampVolumeRe), func(ctx context.Context, s *session, line string, _ int) error {
		m := ampVolumeRe.FindStringSubmatch(line)
		level := m[2]
		if len(level) == 2 {
			level += "0"
		}
		db, err := WireToDB(level)
		if err != nil {
			return errUnmatched
		}
		return s.routeSpeaker(ctx, m[1], FuncSpeakerOneVolume, FuncSpeakerTwoVolume, db)
	}},
	{"speaker mute", matches(ampMuteRe), func(ctx context.Context, s *session, line string, _ int) error {
		m := ampMuteRe.FindStringSubmatch(line)
		return s.routeSpeaker(ctx, m[1], FuncSpeakerOneMute, FuncSpeakerTwoMute, m[2] == "ON")
	}},
	{"operation mode", matches(ampModeRe), func(ctx context.Context, s *session, line string, _ int) error {
		m := ampModeRe.FindStringSubmatch(line)
		zone, ok, err := s.zoneLevel(ctx, m[1])
		if !ok || err != nil {
			return err
		}
		mode := ModeNormal
		if m[2] == "BRI" {
			mode = ModeBridged
		}
		s.ampModes[zone] = mode
		return s.writeToken(ctx, FuncOperationMode, zone, m[2])
	}},
	{"input", matches(ampInputRe), func(ctx context.Context, s *session, line string, _ int) error {
		m := ampInputRe.FindStringSubmatch(line)
		zone, ok, err := s.zoneLevel(ctx, m[1])
		if !ok || err != nil {
			return err
		}
		return s.decodeInput(ctx, FuncAmpSelectInput, zone, m[2])
	}},
	{"turn-on mode", matches(ampTurnOnRe), func(ctx context.Context, s *session, line string, _ int) error {
		m := ampTurnOnRe.FindStringSubmatch(line)
		zone, ok, err := s.zoneLevel(ctx, m[1])
		if !ok || err != nil {
			return err
		}
		return s.writeToken(ctx, FuncTurnOnMode, zone, m[2])
	}},
	{"trigger input", matches(ampTriggerRe), zoneBool(ampTriggerRe, FuncTriggerInput)},
	{"audio signal", matches(ampSignalRe), zoneBool(ampSignalRe, FuncAudioSignal)},
}

func zoneBool(re *regexp.Regexp, fn Func) func(context.Context, *session, string, int) error {
	return func(ctx context.Context, s *session, line string, _ int) error {
		m := re.FindStringSubmatch(line)
		zone, ok, err := s.zoneLevel(ctx, m[1])
		if !ok || err != nil {
			return err
		}
		return s.write(ctx, fn, zone, m[2] == "ON")
	}
}

// routeSpeaker writes a per-speaker value to every speaker the response
// addresses under the zone's current mode.
func (s *session) routeSpeaker(ctx context.Context, channel string, one, two Func, val any) error {
	ch, _ := strconv.Atoi(channel) //nolint:errcheck // two digits by regexp
	zone, _, err := FoldChannel(ch)
	if err != nil {
		return errUnmatched
	}
	if err := s.ensureZone(ctx, zone); err != nil {
		return err
	}
	_, speakers, _ := RouteResponse(ch, s.ampModes[zone]) //nolint:errcheck // channel validated above
	for _, sp := range speakers {
		fn := one
		if sp == SpeakerTwo {
			fn = two
		}
		if err := s.write(ctx, fn, zone, val); err != nil {
			return err
		}
	}
	return nil
}

// zoneLevel resolves a zone-level response. ok is false for even channels,
// which do not carry zone attributes.
func (s *session) zoneLevel(ctx context.Context, channel string) (zone int, ok bool, err error) {
	ch, _ := strconv.Atoi(channel) //nolint:errcheck // two digits by regexp
	zone, sp, err := FoldChannel(ch)
	if err != nil {
		return 0, false, errUnmatched
	}
	if sp != SpeakerOne {
		return zone, false, nil
	}
	if err := s.ensureZone(ctx, zone); err != nil {
		return 0, false, err
	}
	return zone, true, nil
}
