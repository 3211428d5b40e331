package avr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-avr/internal/state"
)

// dbOffset is the distance between a wire level and its dB value:
// level 50 is 0 dB.
const dbOffset = 50

// DecodeEnumValue resolves query against enum and returns the matching label.
// Entries are tried in key order; within an entry a case-insensitive label
// match is checked before a key match. It returns "" when nothing matches.
func DecodeEnumValue(enum *state.Enumeration, query string) string {
	q := strings.TrimSpace(query)
	for _, e := range enum.Entries() {
		if strings.EqualFold(e.Label, q) {
			return e.Label
		}
		if strconv.Itoa(e.Key) == q {
			return e.Label
		}
	}
	return ""
}

// VolumeToWire encodes a 0..98 level: negative values clamp to 0, the value
// is rounded to the nearest half step, and half steps append a trailing 5.
//
//	VolumeToWire(0)    == "00"
//	VolumeToWire(5.5)  == "055"
//	VolumeToWire(35.5) == "355"
func VolumeToWire(level float64) string {
	if level < 0 || math.IsNaN(level) {
		level = 0
	}
	halves := int(math.Round(level * 2))
	whole := halves / 2
	if halves%2 == 1 {
		return fmt.Sprintf("%02d5", whole)
	}
	return fmt.Sprintf("%02d", whole)
}

// ParseWireLevel decodes a level token: three digits carry one decimal place
// ("305" is 30.5), one or two digits are whole.
func ParseWireLevel(token string) (float64, error) {
	t := strings.TrimSpace(token)
	if len(t) == 0 || len(t) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedLevel, token)
	}
	n, err := strconv.Atoi(t)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedLevel, token)
	}
	if len(t) == 3 {
		return float64(n) / 10, nil
	}
	return float64(n), nil
}

// WireToDB decodes a level token and converts it to dB.
func WireToDB(token string) (float64, error) {
	level, err := ParseWireLevel(token)
	if err != nil {
		return 0, err
	}
	return level - dbOffset, nil
}

// DBToWire converts dB to a wire level token.
func DBToWire(db float64) string {
	return VolumeToWire(db + dbOffset)
}

// Pad left-pads n with zeros to width digits.
func Pad(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

// threeDigitLevel always yields the three-character level form used by the
// amplifier dialect ("35" becomes "350").
func threeDigitLevel(db float64) string {
	w := DBToWire(db)
	if len(w) == 2 {
		w += "0"
	}
	return w
}
