package label

import (
	"context"
	"errors"
	"testing"
)

func TestParseResponse(t *testing.T) {
	raw := "[single/bracket/mounting/holes]\nA flat mounting bracket with two bolt holes."
	got, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	want := Labels{
		Continuity:  "single",
		Primary:     "bracket",
		Secondary:   "mounting",
		Feature:     "holes",
		Description: "A flat mounting bracket with two bolt holes.",
	}
	if got != want {
		t.Errorf("ParseResponse() = %+v, want %+v", got, want)
	}
}

func TestParseResponseTolerantWhitespace(t *testing.T) {
	raw := "\n  [multiple/gear/spur/teeth]  \n  A spur gear assembly.  \n"
	got, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if got.Primary != "gear" || got.Description != "A spur gear assembly." {
		t.Errorf("ParseResponse() = %+v", got)
	}
}

func TestParseResponseInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"single line", "[single/bracket/mounting/holes]"},
		{"three slots", "[single/bracket/mounting]\nA bracket."},
		{"five slots", "[a/b/c/d/e]\nToo many."},
		{"uppercase tag", "[Single/bracket/mounting/holes]\nA bracket."},
		{"missing brackets", "single/bracket/mounting/holes\nA bracket."},
		{"tag has spaces", "[single/flat bracket/mounting/holes]\nA bracket."},
		{"empty description", "[single/bracket/mounting/holes]\n   "},
		{"prose before tag", "Sure, here it is: [single/bracket/mounting/holes]\nA bracket."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.raw)
			if err == nil {
				t.Fatal("ParseResponse() succeeded, want error")
			}
			var ire *InvalidResponseError
			if !errors.As(err, &ire) {
				t.Errorf("error type = %T, want *InvalidResponseError", err)
			}
		})
	}
}

func TestTagLine(t *testing.T) {
	l := Labels{Continuity: "single", Primary: "plate", Secondary: "base", Feature: "slots"}
	if got, want := l.TagLine(), "[single/plate/base/slots]"; got != want {
		t.Errorf("TagLine() = %q, want %q", got, want)
	}
}

func TestTagLineRoundTrip(t *testing.T) {
	l := Labels{Continuity: "multiple", Primary: "housing", Secondary: "motor", Feature: "ribs", Description: "d"}
	got, err := ParseResponse(l.TagLine() + "\nd")
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if got != l {
		t.Errorf("round trip = %+v, want %+v", got, l)
	}
}

func TestStaticOracle(t *testing.T) {
	want := Labels{Continuity: "single", Primary: "shaft", Secondary: "stepped", Feature: "shoulder", Description: "A stepped shaft."}
	s := &Static{Result: want}
	got, err := s.Label(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if got != want {
		t.Errorf("Label() = %+v, want %+v", got, want)
	}

	sentinel := errors.New("quota exhausted")
	s = &Static{Err: sentinel}
	if _, err := s.Label(context.Background(), nil); !errors.Is(err, sentinel) {
		t.Errorf("Label() error = %v, want %v", err, sentinel)
	}
}
