package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// container tracks the position inside an open object or array.
type container struct {
	object bool
	items  int
}

// Canonicalize re-serializes a JSON document in compact form. Keys keep their
// order, string escapes are decoded to literal UTF-8, integers are normalized
// and numbers with a fraction or exponent are written as floats.
func Canonicalize(data []byte) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, errors.New("malformed JSON document")
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var buf bytes.Buffer
	var stack []container
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if delim, ok := token.(json.Delim); ok && (delim == '}' || delim == ']') {
			stack = stack[:len(stack)-1]
			buf.WriteByte(byte(delim))
			continue
		}

		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.items > 0 {
				// Odd positions inside an object are values.
				if top.object && top.items%2 == 1 {
					buf.WriteByte(':')
				} else {
					buf.WriteByte(',')
				}
			}
			top.items++
		}

		switch v := token.(type) {
		case json.Delim:
			buf.WriteByte(byte(v))
			stack = append(stack, container{object: v == '{'})
		case string:
			if err := writeString(&buf, v); err != nil {
				return nil, err
			}
		case json.Number:
			number, err := canonicalNumber(v)
			if err != nil {
				return nil, err
			}
			buf.WriteString(number)
		case bool:
			buf.WriteString(strconv.FormatBool(v))
		case nil:
			buf.WriteString("null")
		}
	}

	return json.RawMessage(buf.Bytes()), nil
}

func canonicalNumber(n json.Number) (string, error) {
	text := n.String()
	if !strings.ContainsAny(text, ".eE") {
		i, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return "", fmt.Errorf("invalid integer %s", text)
		}
		return i.String(), nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) {
		return "", fmt.Errorf("number %s is out of range", text)
	}
	return formatFloat(f), nil
}

// writeString encodes s as a JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) error {
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
