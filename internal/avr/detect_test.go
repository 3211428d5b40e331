package avr

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want Dialect
	}{
		{"SV01050", DialectAmplifier},
		{"SV12355", DialectAmplifier},
		{"MV355", DialectReceiver},
		{"MV35", DialectReceiver},
		{"MVMAX 80", DialectReceiver},
		{"PWON", DialectReceiver},
		{"PWSTANDBY", DialectReceiver},
		{"SV0105", DialectUnknown},
		{"SVOFF", DialectUnknown},
		{"MV", DialectUnknown},
		{"PWOFF", DialectUnknown},
		{"SIDVD", DialectUnknown},
		{"", DialectUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.line); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestProbeCommandsAskAmplifierFirst(t *testing.T) {
	if probeCommands[0] != "SV?" {
		t.Errorf("first probe = %q, want SV?", probeCommands[0])
	}
}
