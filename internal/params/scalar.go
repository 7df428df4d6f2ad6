package params

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Kind identifies which member of a Scalar is set.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	default:
		return "string"
	}
}

// Scalar is a command-line value coerced to the most specific JSON type.
type Scalar struct {
	Kind  Kind
	Int   *big.Int
	Float float64
	Bool  bool
	Str   string
}

// ParseScalar tries, in order: true/false, null/none, integer, finite float.
// Text with a 0x prefix is only ever read as a hexadecimal integer. Single
// underscores between digits are accepted. Anything else stays a string.
func ParseScalar(value string) Scalar {
	v := strings.TrimSpace(value)

	switch strings.ToLower(v) {
	case "true":
		return Scalar{Kind: KindBool, Bool: true}
	case "false":
		return Scalar{Kind: KindBool, Bool: false}
	case "null", "none":
		return Scalar{Kind: KindNull}
	}

	if hasHexPrefix(v) {
		if n, ok := parseHex(v[2:]); ok {
			return Scalar{Kind: KindInt, Int: n}
		}
		return Scalar{Kind: KindString, Str: value}
	}

	if n, ok := parseDecimal(v); ok {
		return Scalar{Kind: KindInt, Int: n}
	}

	if f, ok := parseFloat(v); ok {
		return Scalar{Kind: KindFloat, Float: f}
	}

	return Scalar{Kind: KindString, Str: value}
}

func hasHexPrefix(v string) bool {
	return strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X")
}

// parseHex reads the digits after a 0x prefix. One underscore may follow the prefix.
func parseHex(digits string) (*big.Int, bool) {
	digits = strings.TrimPrefix(digits, "_")
	clean, ok := stripUnderscores(digits, isHexDigit)
	if !ok {
		return nil, false
	}
	return new(big.Int).SetString(clean, 16)
}

func parseDecimal(v string) (*big.Int, bool) {
	sign := ""
	if v != "" && (v[0] == '+' || v[0] == '-') {
		sign, v = v[:1], v[1:]
	}

	clean, ok := stripUnderscores(v, isDecimalDigit)
	if !ok {
		return nil, false
	}
	return new(big.Int).SetString(sign+clean, 10)
}

// parseFloat accepts decimal notation with an optional exponent.
func parseFloat(v string) (float64, bool) {
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case isDecimalDigit(c), c == '.', c == 'e', c == 'E', c == '+', c == '-':
		case c == '_':
			if i == 0 || i == len(v)-1 || !isDecimalDigit(v[i-1]) || !isDecimalDigit(v[i+1]) {
				return 0, false
			}
		default:
			return 0, false
		}
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(v, "_", ""), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// stripUnderscores removes single underscores that sit between two digits.
func stripUnderscores(s string, isDigit func(byte) bool) (string, bool) {
	if s == "" {
		return "", false
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isDigit(c):
			b.WriteByte(c)
		case c == '_' && i > 0 && i < len(s)-1 && isDigit(s[i-1]) && isDigit(s[i+1]):
		default:
			return "", false
		}
	}
	return b.String(), true
}

func isDecimalDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDecimalDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// MarshalJSON encodes the scalar. Floats always carry a decimal point or an
// exponent so that 3.0 is not sent as the integer 3.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindInt:
		return []byte(s.Int.String()), nil
	case KindFloat:
		return []byte(formatFloat(s.Float)), nil
	case KindBool:
		return json.Marshal(s.Bool)
	case KindNull:
		return []byte("null"), nil
	default:
		var buf bytes.Buffer
		if err := writeString(&buf, s.Str); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// formatFloat uses the shortest round-trip digits, positional notation for
// decimal exponents in [-4, 16) and scientific notation otherwise.
func formatFloat(f float64) string {
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}

	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}
