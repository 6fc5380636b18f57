package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const EventActionPush = "push"

// Event is a registry notification kept as a generic JSON object so it can
// be forwarded to webhooks without losing fields.
type Event map[string]any

// DecodeEvent parses a JSON object, keeping numbers as json.Number.
func DecodeEvent(raw []byte) (Event, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var event Event
	if err := decoder.Decode(&event); err != nil {
		return nil, fmt.Errorf("core: decode event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("core: event must be a json object")
	}
	return event, nil
}

func (e Event) ID() string {
	return stringAt(e, "id")
}

func (e Event) Action() string {
	return stringAt(e, "action")
}

func (e Event) Repository() string {
	return stringAt(e, "target", "repository")
}

func (e Event) Tag() string {
	return stringAt(e, "target", "tag")
}

func (e Event) RequestHost() string {
	return stringAt(e, "request", "host")
}

// CanonicalJSON encodes value with sorted object keys and without HTML
// escaping. Decoding the output with UseNumber and encoding it again yields
// identical bytes.
func CanonicalJSON(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, fmt.Errorf("core: encode json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RecanonicalizeBody decodes a stored request body and encodes it again.
func RecanonicalizeBody(body string) ([]byte, error) {
	decoder := json.NewDecoder(strings.NewReader(body))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("core: decode stored request body: %w", err)
	}
	return CanonicalJSON(value)
}

func stringAt(root map[string]any, path ...string) string {
	var current any = root
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = node[key]
		if !ok {
			return ""
		}
	}
	value, ok := current.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
