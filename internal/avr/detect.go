package avr

import "regexp"

// probeCommands are queued when a connection opens with an unknown dialect.
// The amplifier is asked first so a receiver's reply cannot be mistaken for
// an amplifier's.
var probeCommands = []string{"SV?", "PW?", "MV?"}

var (
	amplifierSignature = regexp.MustCompile(`^SV\d{2}\d{3}$`)
	receiverSignatures = []*regexp.Regexp{
		regexp.MustCompile(`^MV\d{2,3}$`),
		regexp.MustCompile(`^MVMAX`),
		regexp.MustCompile(`^PW(ON|STANDBY)$`),
	}
)

// Classify returns the dialect a response line proves, or DialectUnknown.
func Classify(line string) Dialect {
	if amplifierSignature.MatchString(line) {
		return DialectAmplifier
	}
	for _, re := range receiverSignatures {
		if re.MatchString(line) {
			return DialectReceiver
		}
	}
	return DialectUnknown
}
