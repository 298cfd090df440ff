// Package label assigns structured tags and a short description to a
// reconstructed part from its preview image. The tag line follows the
// fixed four-slot scheme [continuity/primary/secondary/feature]; the
// description is a single sentence.
package label

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Labels is the structured label of one part.
type Labels struct {
	Continuity  string `json:"continuity"` // "single" or "multiple"
	Primary     string `json:"primary"`    // part family, e.g. "bracket"
	Secondary   string `json:"secondary"`  // sub-type, e.g. "mounting"
	Feature     string `json:"feature"`    // salient feature, e.g. "holes"
	Description string `json:"description"`
}

// TagLine renders the bracketed tag form.
func (l Labels) TagLine() string {
	return fmt.Sprintf("[%s/%s/%s/%s]", l.Continuity, l.Primary, l.Secondary, l.Feature)
}

// Oracle produces labels for a part given its rendered PNG preview.
type Oracle interface {
	Label(ctx context.Context, png []byte) (Labels, error)
}

// InvalidResponseError reports an oracle response that does not follow
// the two-line tag-then-description contract.
type InvalidResponseError struct {
	Response string
	Reason   string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("label: invalid oracle response (%s): %q", e.Reason, e.Response)
}

var tagLinePattern = regexp.MustCompile(`^\[([a-z0-9_\-]+)/([a-z0-9_\-]+)/([a-z0-9_\-]+)/([a-z0-9_\-]+)\]$`)

// ParseResponse validates and parses a raw oracle response: line one is
// the bracketed tag quad, line two the description.
func ParseResponse(raw string) (Labels, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) < 2 {
		return Labels{}, &InvalidResponseError{Response: raw, Reason: "fewer than two lines"}
	}
	m := tagLinePattern.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil {
		return Labels{}, &InvalidResponseError{Response: raw, Reason: "malformed tag line"}
	}
	desc := strings.TrimSpace(lines[1])
	if desc == "" {
		return Labels{}, &InvalidResponseError{Response: raw, Reason: "empty description"}
	}
	return Labels{
		Continuity:  m[1],
		Primary:     m[2],
		Secondary:   m[3],
		Feature:     m[4],
		Description: desc,
	}, nil
}

// Static is an Oracle returning fixed labels. Useful in tests and as a
// placeholder when no API key is configured.
type Static struct {
	Result Labels
	Err    error
}

func (s *Static) Label(ctx context.Context, png []byte) (Labels, error) {
	if s.Err != nil {
		return Labels{}, s.Err
	}
	return s.Result, nil
}
