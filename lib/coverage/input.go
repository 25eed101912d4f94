package coverage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var log = logger.GetLogger("coverage")

// lineArraySchema describes the coverage of a single file
const lineArraySchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"anyOf": [
			{"type": "null"},
			{"type": "integer", "minimum": 0}
		]
	}
}`

var fileSchema = jsonschema.MustCompileString("lines.json", lineArraySchema)

// DecodeReport parses a JSON report of the form {"path": [0, null, 3], ...}.
// Files whose line array is malformed are returned in rejected (wrapping ErrMalformedInput)
// and omitted from files. An error is only returned if data is not a JSON object.
func DecodeReport(data []byte) (files map[string][]Line, rejected map[string]error, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("report must be a JSON object of line arrays: %w", err)
	}

	files = make(map[string][]Line, len(raw))
	rejected = make(map[string]error)
	for path, msg := range raw {
		lines, err := decodeLines(msg)
		if err != nil {
			log.Debugf("rejected coverage of %s: %v", path, err)
			rejected[path] = err
			continue
		}
		files[path] = lines
	}
	return files, rejected, nil
}

func decodeLines(msg json.RawMessage) ([]Line, error) {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := fileSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	var lines []Line
	if err := json.Unmarshal(msg, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
