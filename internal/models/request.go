package models

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// Request is the JSON envelope sent to the miner.
// Fields are serialized in declaration order; absent fields are omitted.
type Request struct {
	Cmd     string          `json:"cmd"`               // Command identifier, e.g. get.device.info
	TS      *int64          `json:"ts,omitempty"`      // Unix seconds used in the token (set.* only)
	Token   string          `json:"token,omitempty"`   // Eight character derived token (set.* only)
	Account *string         `json:"account,omitempty"` // Account name (set.* only)
	Param   json.RawMessage `json:"param,omitempty"`   // Plain JSON value or base64 ciphertext string
}

// Encode serializes the request in compact form and drops every non-ASCII byte,
// because the firmware only accepts an ASCII payload.
func (r *Request) Encode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(r); err != nil {
		return nil, err
	}

	return asciiOnly(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

func asciiOnly(data []byte) []byte {
	out := data[:0]
	for _, b := range data {
		if b < utf8.RuneSelf {
			out = append(out, b)
		}
	}
	return out
}
