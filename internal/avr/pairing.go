package avr

import "fmt"

// Amplifier channels are paired into zones: zone z owns channel 2z-1
// (speaker one) and 2z (speaker two).

// maxChannel is the highest amplifier speaker channel.
const maxChannel = 98

// Speaker identifies one side of an amplifier zone.
type Speaker int

// Speakers of a zone.
const (
	SpeakerOne Speaker = 1
	SpeakerTwo Speaker = 2
)

// Mode is the operation mode of an amplifier zone.
type Mode int

// Zone operation modes.
const (
	// ModeNormal drives each speaker channel independently.
	ModeNormal Mode = iota
	// ModeBridged drives both speakers from the odd channel.
	ModeBridged
)

func (m Mode) String() string {
	if m == ModeBridged {
		return "bridged"
	}
	return "normal"
}

// FoldChannel maps a speaker channel to its zone and speaker.
func FoldChannel(ch int) (zone int, sp Speaker, err error) {
	if ch < 1 || ch > maxChannel {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	zone = (ch + 1) / 2
	if ch%2 == 1 {
		return zone, SpeakerOne, nil
	}
	return zone, SpeakerTwo, nil
}

// ChannelsFor returns the channels a write to speaker sp of zone must be
// sent on. In bridged mode every write goes to the odd channel.
func ChannelsFor(zone int, sp Speaker, mode Mode) []int {
	odd := 2*zone - 1
	if mode == ModeBridged || sp == SpeakerOne {
		return []int{odd}
	}
	return []int{odd + 1}
}

// zoneChannel returns the channel carrying zone-level attributes.
func zoneChannel(zone int) int {
	return 2*zone - 1
}

// RouteResponse returns the speakers a per-speaker response on ch updates.
// In bridged mode an odd-channel response updates both speakers and an
// even-channel response updates none.
func RouteResponse(ch int, mode Mode) (zone int, speakers []Speaker, err error) {
	zone, sp, err := FoldChannel(ch)
	if err != nil {
		return 0, nil, err
	}
	if mode == ModeNormal {
		return zone, []Speaker{sp}, nil
	}
	if sp == SpeakerOne {
		return zone, []Speaker{SpeakerOne, SpeakerTwo}, nil
	}
	return zone, nil, nil
}
