package measure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/floorscan/internal/model"
)

// ErrNoStringEntries is returned when the JSON object has entries but none
// of them maps a label to a string.
var ErrNoStringEntries = errors.New("JSON object has no string-valued entries")

// Result is the outcome of parsing a model reply.
type Result struct {
	// Measurements holds the accepted entries in model order.
	Measurements *model.MeasurementMap

	// Warnings lists entries that were dropped or merged.
	Warnings []string

	// Block is the JSON text the measurements were decoded from.
	Block string
}

// Parse extracts the single JSON object from text and decodes it into a
// Measurement Map. All failures are returned as *model.ParseError.
//
// Entries whose value is not a string are dropped and reported as warnings
// so that one malformed room does not discard the whole table. Labels are
// trimmed and NFC-normalized while values are kept verbatim; a label that
// appears twice keeps its first position and takes the last value, as a JSON
// object decoder would.
func Parse(text string) (*Result, error) {
	block, err := ExtractJSONBlock(text)
	if err != nil {
		return nil, &model.ParseError{Err: err}
	}

	result, err := decodeBlock(block)
	if err != nil {
		return nil, &model.ParseError{Err: err}
	}
	return result, nil
}

// decodeBlock walks the object token by token to keep key order.
func decodeBlock(block string) (*Result, error) {
	dec := json.NewDecoder(strings.NewReader(block))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrInvalidJSON
	}

	result := &Result{
		Measurements: model.NewMeasurementMap(),
		Block:        block,
	}
	total := 0

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		total++

		room := normalizeLabel(key)
		if room == "" {
			result.warn("dropped entry with empty label")
			continue
		}

		// null unmarshals into a string without error, so check the kind first.
		if kind := kindOf(raw); kind != kindString {
			result.warn("dropped %q: value is %s, not a string", room, kind)
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}

		if result.Measurements.Set(room, value) {
			result.warn("duplicate label %q: kept the last value", room)
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	if total > 0 && result.Measurements.Len() == 0 {
		return nil, ErrNoStringEntries
	}
	return result, nil
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// normalizeLabel trims and NFC-normalizes a room label so that visually
// identical labels compare equal.
func normalizeLabel(label string) string {
	return strings.TrimSpace(norm.NFC.String(label))
}

const kindString = "a string"

// kindOf names the JSON type of raw for warnings.
func kindOf(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '{':
		return "an object"
	case '[':
		return "an array"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	case '"':
		return kindString
	default:
		return "a number"
	}
}
