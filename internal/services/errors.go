package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// APIError is a non-2xx answer from the market API.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{
		Status:  status,
		Message: extractMessage(status, body),
		Body:    body,
	}
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// extractMessage prefers "detail", then "error", then the per-field
// validation messages in body order.
func extractMessage(status int, body []byte) string {
	fallback := fmt.Sprintf("request failed with status %d", status)

	fields, err := orderedFields(body)
	if err != nil {
		return fallback
	}

	for _, key := range []string{"detail", "error"} {
		for _, f := range fields {
			if f.key == key {
				if msg := strings.Join(messages(f.raw), " "); msg != "" {
					return msg
				}
			}
		}
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		msg := strings.Join(messages(f.raw), " ")
		if msg == "" {
			continue
		}
		if f.key == "non_field_errors" {
			parts = append(parts, msg)
			continue
		}
		parts = append(parts, fieldLabel(f.key)+": "+msg)
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, " | ")
}

type field struct {
	key string
	raw json.RawMessage
}

// orderedFields walks a JSON object keeping key order, which a map would lose.
func orderedFields(body []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not a JSON object")
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fields = append(fields, field{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return fields, nil
}

// messages flattens a field value: a string, a list of strings, or a nested
// object of either.
func messages(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []string
		for _, item := range list {
			out = append(out, messages(item)...)
		}
		return out
	}

	nested, err := orderedFields(raw)
	if err != nil {
		return nil
	}
	var out []string
	for _, f := range nested {
		for _, m := range messages(f.raw) {
			out = append(out, fieldLabel(f.key)+": "+m)
		}
	}
	return out
}

// fieldLabel turns "first_name" into "First name".
func fieldLabel(key string) string {
	label := strings.ReplaceAll(key, "_", " ")
	r, size := utf8.DecodeRuneInString(label)
	if r == utf8.RuneError {
		return label
	}
	return string(unicode.ToUpper(r)) + label[size:]
}
