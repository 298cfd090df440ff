package codec

import "fmt"

// EncodingError reports an internal invariant violation during encoding:
// the encoder met a kind absent from its command-tag table, which the
// support filter should have excluded. It marks a codec defect, not a
// user error.
type EncodingError struct {
	Entity string
	Msg    string
}

func (e *EncodingError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("encoding error: %s", e.Msg)
	}
	return fmt.Sprintf("encoding error at %s: %s", e.Entity, e.Msg)
}

func encodingErr(entity, format string, args ...interface{}) error {
	return &EncodingError{Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

// DecodingError reports a defect in a command sequence: truncation, bad
// arity, an unrecognized tag, a reference outside the declaration window,
// or a grammar version mismatch. Line is 1-based.
type DecodingError struct {
	Line int
	Msg  string
}

func (e *DecodingError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("decoding error: %s", e.Msg)
	}
	return fmt.Sprintf("decoding error at line %d: %s", e.Line, e.Msg)
}

func decodingErr(line int, format string, args ...interface{}) error {
	return &DecodingError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
