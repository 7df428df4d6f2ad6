package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Response is a decoded miner reply. The payload is kept as raw JSON so that
// printing preserves the key order chosen by the firmware.
type Response struct {
	Raw json.RawMessage
}

// rawFallback wraps payloads that are not valid JSON.
type rawFallback struct {
	Raw string `json:"raw"`
}

// statusEnvelope picks the commonly used top-level fields.
type statusEnvelope struct {
	Status json.RawMessage `json:"STATUS"`
	Msg    json.RawMessage `json:"msg"`
}

// EmptyResponse is returned for zero length frames.
func EmptyResponse() Response {
	return Response{Raw: json.RawMessage("{}")}
}

// NewResponse decodes a frame body. Invalid UTF-8 sequences are dropped and
// bare NaN, Infinity and -Infinity values become strings. A body that is still
// not valid JSON degrades to {"raw": "<text>"}.
func NewResponse(body []byte) Response {
	text := strings.ToValidUTF8(string(body), "")
	if json.Valid([]byte(text)) {
		return Response{Raw: json.RawMessage(text)}
	}
	if quoted, ok := quoteNonFinite(text); ok && json.Valid([]byte(quoted)) {
		return Response{Raw: json.RawMessage(quoted)}
	}
	return NewRawResponse(text)
}

var nonFiniteTokens = []string{"-Infinity", "Infinity", "NaN"}

// quoteNonFinite wraps non-finite number literals outside of strings in quotes.
// It reports whether anything was replaced.
func quoteNonFinite(text string) (string, bool) {
	var b strings.Builder
	inString, escaped, replaced := false, false, false

	for i := 0; i < len(text); {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			i++
			continue
		}

		if c == '"' {
			inString = true
			b.WriteByte(c)
			i++
			continue
		}

		matched := false
		for _, token := range nonFiniteTokens {
			if strings.HasPrefix(text[i:], token) {
				b.WriteString(`"` + token + `"`)
				i += len(token)
				matched, replaced = true, true
				break
			}
		}
		if !matched {
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), replaced
}

// NewRawResponse builds the fallback response for undecodable text.
func NewRawResponse(text string) Response {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	// A struct with a single string field cannot fail to encode.
	_ = encoder.Encode(rawFallback{Raw: text})
	return Response{Raw: json.RawMessage(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))}
}

// MarshalJSON returns the raw payload.
func (r Response) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("{}"), nil
	}
	return r.Raw, nil
}

// Decode unmarshals the payload into v.
func (r Response) Decode(v any) error {
	data, _ := r.MarshalJSON()
	return json.Unmarshal(data, v)
}

// IsEmpty reports whether the payload is an empty object.
func (r Response) IsEmpty() bool {
	var obj map[string]json.RawMessage
	if err := r.Decode(&obj); err != nil {
		return false
	}
	return len(obj) == 0
}

// Status returns the STATUS field when it is a string.
func (r Response) Status() string {
	var env statusEnvelope
	if err := r.Decode(&env); err != nil || len(env.Status) == 0 {
		return ""
	}

	var status string
	if err := json.Unmarshal(env.Status, &status); err != nil {
		return ""
	}
	return status
}

// Salt returns msg.salt when msg is an object carrying a non-empty string salt.
func (r Response) Salt() (string, bool) {
	var env statusEnvelope
	if err := r.Decode(&env); err != nil || len(env.Msg) == 0 {
		return "", false
	}

	var msg struct {
		Salt *string `json:"salt"`
	}
	if err := json.Unmarshal(env.Msg, &msg); err != nil || msg.Salt == nil || *msg.Salt == "" {
		return "", false
	}
	return *msg.Salt, true
}

// Indent returns the payload formatted with two-space indentation.
func (r Response) Indent() ([]byte, error) {
	data, _ := r.MarshalJSON()
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
