// Package codec transforms normalized design trees to and from the
// compact command sequence used as the model training artifact. The
// grammar is line-oriented: one command per line, a single-letter tag
// followed by a parenthesized operand list.
//
//	G (1)                    grammar version header
//	S (2)                    begin sketch 2
//	  - P (5)                begin profile 5
//	    - O (true)           open a loop (outer = true)
//	      - L (x1, y1, x2, y2)
//	      - C (cx, cy, r)
//	      - A (sx, sy, ex, ey, cx, cy, rx, ry, r, a0, a1)
//	  - T (12 pose numbers)  sketch plane frame
//	E (profile, sketch, Op, Extent, d1, d2)
//
// Identifiers are the small integers of the position-derived names, never
// strings. All numbers are quantized to design.Precision decimal digits.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
)

// Command tags.
const (
	tagGrammar = 'G'
	tagSketch  = 'S'
	tagProfile = 'P'
	tagLoop    = 'O'
	tagLine    = 'L'
	tagCircle  = 'C'
	tagArc     = 'A'
	tagPose    = 'T'
	tagExtrude = 'E'
)

// Operand arity per tag. The decoder enforces these strictly.
var commandArity = map[byte]int{
	tagGrammar: 1,
	tagSketch:  1,
	tagProfile: 1,
	tagLoop:    1,
	tagLine:    4,
	tagCircle:  3,
	tagArc:     11,
	tagPose:    12,
	tagExtrude: 6,
}

// Operation and extent tags, shared by encoder and decoder so the two
// cannot drift apart.
var operationTags = map[design.Operation]string{
	design.OpNewBody:   "New",
	design.OpJoin:      "Join",
	design.OpCut:       "Cut",
	design.OpIntersect: "Intersect",
}

var extentTags = map[design.ExtentType]string{
	design.ExtentOneSide:   "One",
	design.ExtentTwoSides:  "Two",
	design.ExtentSymmetric: "Symmetric",
}

var operationsByTag = invert(operationTags)
var extentsByTag = invertExtent(extentTags)

func invert(m map[design.Operation]string) map[string]design.Operation {
	out := make(map[string]design.Operation, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func invertExtent(m map[design.ExtentType]string) map[string]design.ExtentType {
	out := make(map[string]design.ExtentType, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// numericID extracts the trailing integer of a position-derived name
// ("Sketch12" -> 12).
func numericID(name string) (int, error) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return 0, fmt.Errorf("name %q carries no numeric suffix", name)
	}
	return strconv.Atoi(name[i:])
}

// command is one parsed line of a sequence.
type command struct {
	line     int // 1-based source line
	tag      byte
	operands []string
}

// parseLine parses one non-empty line into a command. It tolerates the
// encoder's indentation and "- " list markers before the tag.
func parseLine(lineNo int, line string) (command, error) {
	s := strings.TrimLeft(line, " \t-")
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return command{}, decodingErr(lineNo, "no command tag in %q", strings.TrimSpace(line))
	}
	tag := s[0]
	open := strings.IndexByte(s, '(')
	closing := strings.LastIndexByte(s, ')')
	if open < 0 || closing < open {
		return command{}, decodingErr(lineNo, "command %c has no operand list", tag)
	}
	inner := s[open+1 : closing]
	var operands []string
	if strings.TrimSpace(inner) != "" {
		for _, part := range strings.Split(inner, ",") {
			operands = append(operands, strings.TrimSpace(part))
		}
	}
	want, known := commandArity[tag]
	if !known {
		return command{}, decodingErr(lineNo, "unrecognized command tag %c", tag)
	}
	if len(operands) != want {
		return command{}, decodingErr(lineNo, "command %c expects %d operands, got %d", tag, want, len(operands))
	}
	return command{line: lineNo, tag: tag, operands: operands}, nil
}

// num parses operand i as a float64.
func (c command) num(i int) (float64, error) {
	v, err := strconv.ParseFloat(c.operands[i], 64)
	if err != nil {
		return 0, decodingErr(c.line, "command %c operand %d: %q is not a number", c.tag, i+1, c.operands[i])
	}
	return v, nil
}

// id parses operand i as a non-negative integer reference.
func (c command) id(i int) (int, error) {
	v, err := strconv.Atoi(c.operands[i])
	if err != nil || v < 0 {
		return 0, decodingErr(c.line, "command %c operand %d: %q is not a valid reference", c.tag, i+1, c.operands[i])
	}
	return v, nil
}
