package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotAnObject is returned when a MeasurementMap is decoded from JSON
// that is not an object.
var ErrNotAnObject = errors.New("measurement map: JSON value is not an object")

// Measurement is one row of the rendered table.
type Measurement struct {
	// Room is the area or room label as read from the plan (e.g., "Great Room").
	Room string `json:"room"`

	// Value is the free-form measurement string (e.g., `19'-9" x 12'-4"`).
	Value string `json:"value"`
}

// MeasurementMap is an ordered mapping from room label to measurement.
// Keys are unique. Iteration order is insertion order, which for parsed
// model output is the order the keys appeared in the JSON object.
//
// Design decision: Go maps do not preserve order, and the rendered table must
// list rooms in the order the model produced them. We therefore keep a slice
// of entries plus an index for O(1) lookups.
type MeasurementMap struct {
	entries []Measurement
	index   map[string]int
}

// NewMeasurementMap creates an empty MeasurementMap.
func NewMeasurementMap() *MeasurementMap {
	return &MeasurementMap{
		entries: make([]Measurement, 0),
		index:   make(map[string]int),
	}
}

// Set stores value under room. If room already exists its value is replaced
// in place and the original position is kept. Set reports whether the room
// was already present.
func (m *MeasurementMap) Set(room, value string) bool {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[room]; ok {
		m.entries[i].Value = value
		return true
	}
	m.index[room] = len(m.entries)
	m.entries = append(m.entries, Measurement{Room: room, Value: value})
	return false
}

// Get returns the measurement for room.
func (m *MeasurementMap) Get(room string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[room]
	if !ok {
		return "", false
	}
	return m.entries[i].Value, true
}

// Len returns the number of entries.
func (m *MeasurementMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the entries in order.
func (m *MeasurementMap) Entries() []Measurement {
	if m == nil {
		return nil
	}
	out := make([]Measurement, len(m.entries))
	copy(out, m.entries)
	return out
}

// Rooms returns the room labels in order.
func (m *MeasurementMap) Rooms() []string {
	if m == nil {
		return nil
	}
	rooms := make([]string, len(m.entries))
	for i, e := range m.entries {
		rooms[i] = e.Room
	}
	return rooms
}

// MarshalJSON encodes the map as a JSON object, preserving entry order.
func (m *MeasurementMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Room)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of strings, preserving key order.
// Any non-string value is an error; use the measure package for lenient
// decoding of model output.
func (m *MeasurementMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotAnObject
	}

	result := NewMeasurementMap()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("measurement map: unexpected key token %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("measurement map: value for %q: %w", key, err)
		}
		result.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = *result
	return nil
}
