package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScalar indicates a config value that is neither a string nor a number.
var ErrInvalidScalar = errors.New("config value must be a string or a number")

type scalarKind uint8

const (
	kindUnset scalarKind = iota
	kindString
	kindNumber
)

// Scalar is a config value that is either a string or a number. Numbers keep
// their original text so they round-trip unchanged through JSON, YAML and
// DynamoDB.
type Scalar struct {
	raw  string
	kind scalarKind
}

// String returns a string scalar.
func String(s string) Scalar {
	return Scalar{raw: s, kind: kindString}
}

// Number returns a numeric scalar for f, which must be finite.
func Number(f float64) Scalar {
	return Scalar{raw: strconv.FormatFloat(f, 'f', -1, 64), kind: kindNumber}
}

// ParseNumber returns a numeric scalar holding raw verbatim. raw must be a
// JSON number that fits in a float64.
func ParseNumber(raw string) (Scalar, error) {
	if !isJSONNumber(raw) {
		return Scalar{}, fmt.Errorf("%w: %q is not a number", ErrInvalidScalar, raw)
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return Scalar{}, fmt.Errorf("%w: %q is out of range", ErrInvalidScalar, raw)
	}
	return Scalar{raw: raw, kind: kindNumber}, nil
}

// isJSONNumber reports whether raw is exactly one JSON number token.
func isJSONNumber(raw string) bool {
	if raw == "" {
		return false
	}
	first, last := raw[0], raw[len(raw)-1]
	if first != '-' && !isDigit(first) || !isDigit(last) {
		return false
	}
	return json.Valid([]byte(raw))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// IsZero reports whether no value has been set.
func (s Scalar) IsZero() bool { return s.kind == kindUnset }

// IsNumber reports whether the scalar holds a number.
func (s Scalar) IsNumber() bool { return s.kind == kindNumber }

// Raw returns the string value or the numeric text.
func (s Scalar) Raw() string { return s.raw }

func (s Scalar) String() string { return s.raw }

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case kindNumber:
		return []byte(s.raw), nil
	case kindString:
		return json.Marshal(s.raw)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = String(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidScalar, data)
	}
	n, err := ParseNumber(num.String())
	if err != nil {
		return err
	}
	*s = n
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Scalar) MarshalYAML() (any, error) {
	switch s.kind {
	case kindNumber:
		tag := "!!float"
		if _, err := strconv.ParseInt(s.raw, 10, 64); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: s.raw}, nil
	case kindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.raw}, nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d", ErrInvalidScalar, node.Line)
	}
	switch node.ShortTag() {
	case "!!null":
		*s = Scalar{}
	case "!!int", "!!float":
		n, err := ParseNumber(node.Value)
		if err != nil {
			// YAML spellings such as +12, .5, 1. or 0x1F are not JSON numbers
			// and are stored in canonical form instead.
			var f float64
			if decodeErr := node.Decode(&f); decodeErr != nil || math.IsInf(f, 0) || math.IsNaN(f) {
				return fmt.Errorf("%w: %q at line %d", ErrInvalidScalar, node.Value, node.Line)
			}
			n = Number(f)
		}
		*s = n
	case "!!str":
		*s = String(node.Value)
	default:
		return fmt.Errorf("%w: %s at line %d", ErrInvalidScalar, node.ShortTag(), node.Line)
	}
	return nil
}
