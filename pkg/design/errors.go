package design

import "fmt"

// MalformedTreeError reports a structural defect in a raw design document:
// a dangling reference, a missing required field, or an unparseable value.
// Path locates the defect (e.g. "entities.Sketch1.profiles.Profile2").
type MalformedTreeError struct {
	Path string
	Msg  string
}

func (e *MalformedTreeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed design tree: %s", e.Msg)
	}
	return fmt.Sprintf("malformed design tree at %s: %s", e.Path, e.Msg)
}

func malformed(path, format string, args ...interface{}) error {
	return &MalformedTreeError{Path: path, Msg: fmt.Sprintf(format, args...)}
}
