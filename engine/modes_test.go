package engine

import "testing"

func TestParseModes(t *testing.T) {
	tests := []struct {
		in   string
		want int
		fn   func(string) (int, error)
	}{
		{"otsu", 2, wrap(ParseThresholdMode)},
		{"4", 4, wrap(ParseThresholdMode)},
		{"black", 1, wrap(ParseLabelingMode)},
		{"Color+Matrix", 3, wrap(ParsePatternDetectionMode)},
		{"0x304", 0x304, wrap(ParseMatrixCodeType)},
		{"global-id", 0xb0e, wrap(ParseMatrixCodeType)},
		{"field", 1, wrap(ParseImageProcMode)},
		{"square_confidence_cutoff", 6, wrap(ParseMarkerOption)},
	}

	for _, tt := range tests {
		got, err := tt.fn(tt.in)
		if err != nil {
			t.Errorf("parse %q: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parse %q = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestParseModesRejectsUnknown(t *testing.T) {
	if _, err := ParseThresholdMode("9"); err == nil {
		t.Error("threshold mode 9 accepted")
	}
	if _, err := ParseMatrixCodeType("7x7"); err == nil {
		t.Error("matrix code 7x7 accepted")
	}
}

func TestModeStrings(t *testing.T) {
	if s := ThresholdModeAutoAdaptive.String(); s != "adaptive" {
		t.Errorf("String() = %q", s)
	}
	if s := MatrixCodeType(0x777).String(); s != "MatrixCodeType(0x777)" {
		t.Errorf("String() = %q", s)
	}
	if s := parseRoundTrip(PatternDetectionTemplateMonoMatrix); s != PatternDetectionTemplateMonoMatrix {
		t.Errorf("round trip = %v", s)
	}
}

func parseRoundTrip(m PatternDetectionMode) PatternDetectionMode {
	got, _ := ParsePatternDetectionMode(m.String())
	return got
}

func wrap[T ~int](fn func(string) (T, error)) func(string) (int, error) {
	return func(s string) (int, error) {
		v, err := fn(s)
		return int(v), err
	}
}
