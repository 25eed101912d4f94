package coverage

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedInput is returned for line values that are neither NoData nor a non-negative count
var ErrMalformedInput = errors.New("malformed coverage input")

// Line is the coverage of a single source line: a hit count or NoData
type Line int64

// NoData marks a line without coverage semantics. It is encoded as JSON null.
const NoData Line = -1

// IsNoData reports whether the line is the NoData marker
func (l Line) IsNoData() bool {
	return l == NoData
}

// Valid reports whether the line is NoData or a non-negative count
func (l Line) Valid() bool {
	return l >= NoData
}

func (l Line) String() string {
	if l.IsNoData() {
		return "nil"
	}
	return strconv.FormatInt(int64(l), 10)
}

func (l Line) MarshalJSON() ([]byte, error) {
	if l.IsNoData() {
		return []byte("null"), nil
	}
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrMalformedInput, int64(l))
	}
	return strconv.AppendInt(nil, int64(l), 10), nil
}

func (l *Line) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = NoData
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil || v < 0 {
		return fmt.Errorf("%w: %s", ErrMalformedInput, data)
	}
	*l = Line(v)
	return nil
}

// Lines converts raw values into lines. Negative values become NoData.
// It is meant for literals, e.g. Lines(0, -1, 2).
func Lines(values ...int64) []Line {
	lines := make([]Line, len(values))
	for i, v := range values {
		if v < 0 {
			lines[i] = NoData
		} else {
			lines[i] = Line(v)
		}
	}
	return lines
}

// Validate checks that every line is NoData or a non-negative count
func Validate(lines []Line) error {
	for i, l := range lines {
		if !l.Valid() {
			return fmt.Errorf("%w: line %d has value %d", ErrMalformedInput, i+1, int64(l))
		}
	}
	return nil
}
