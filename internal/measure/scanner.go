package measure

import (
	"encoding/json"
	"errors"
)

// Block extraction errors.
var (
	// ErrNoJSONBlock is returned when the text contains no '{' at all.
	ErrNoJSONBlock = errors.New("no JSON object found in model response")

	// ErrUnterminatedJSON is returned when an opening brace is never closed
	// and no other valid block exists. This usually means the model reply was
	// truncated.
	ErrUnterminatedJSON = errors.New("JSON object in model response is not terminated")

	// ErrInvalidJSON is returned when balanced {...} regions exist but none of
	// them is valid JSON.
	ErrInvalidJSON = errors.New("model response contains no valid JSON object")

	// ErrMultipleJSONBlocks is returned when more than one valid JSON object
	// is found. We refuse to guess which one holds the measurements.
	ErrMultipleJSONBlocks = errors.New("model response contains more than one JSON object")
)

// ExtractJSONBlock returns the single JSON object embedded in text.
//
// Every balanced {...} region is a candidate. A candidate is a block when it
// is valid JSON; scanning skips past a block, and an invalid candidate is
// retried from its next '{' so that prose braces cannot hide the object.
// Exactly one block must exist.
func ExtractJSONBlock(text string) (string, error) {
	blocks, invalid, unterminated := scanBlocks(text)

	switch {
	case len(blocks) == 1:
		return blocks[0], nil
	case len(blocks) > 1:
		return "", ErrMultipleJSONBlocks
	case invalid > 0:
		return "", ErrInvalidJSON
	case unterminated:
		return "", ErrUnterminatedJSON
	default:
		return "", ErrNoJSONBlock
	}
}

// scanBlocks returns the valid JSON objects in text, the number of balanced
// regions that were not valid JSON, and whether some '{' was never closed.
func scanBlocks(text string) (blocks []string, invalid int, unterminated bool) {
	closing := make(map[int]int)

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end, ok := closing[i]
		if !ok {
			matchBraces(text, i, closing)
			end = closing[i]
		}
		if end < 0 {
			unterminated = true
			continue
		}

		candidate := text[i : end+1]
		if !json.Valid([]byte(candidate)) {
			invalid++
			continue
		}
		blocks = append(blocks, candidate)
		i = end
	}
	return blocks, invalid, unterminated
}

// matchBraces walks text from the '{' at start until that brace is closed,
// recording in closing the index of the '}' that closes every brace opened
// outside a JSON string on the way. Braces still open at the end of text are
// recorded as -1.
//
// A walk from any recorded brace would follow the same string state, so the
// result holds for it too and the region is never walked twice from there.
func matchBraces(text string, start int, closing map[int]int) {
	var open []int
	inString := false
	escaped := false

	for j := start; j < len(text); j++ {
		c := text[j]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			open = append(open, j)
		case '}':
			top := open[len(open)-1]
			open = open[:len(open)-1]
			if _, seen := closing[top]; !seen {
				closing[top] = j
			}
			if len(open) == 0 {
				return
			}
		}
	}

	for _, o := range open {
		if _, seen := closing[o]; !seen {
			closing[o] = -1
		}
	}
}
