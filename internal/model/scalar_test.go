package model

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestScalarJSON(t *testing.T) {
	cases := []struct {
		in      string
		number  bool
		raw     string
		encoded string
	}{
		{in: `100`, number: true, raw: "100", encoded: `100`},
		{in: `10.50`, number: true, raw: "10.50", encoded: `10.50`},
		{in: `-3e2`, number: true, raw: "-3e2", encoded: `-3e2`},
		{in: `"100"`, number: false, raw: "100", encoded: `"100"`},
		{in: `"req/s"`, number: false, raw: "req/s", encoded: `"req/s"`},
	}

	for _, tc := range cases {
		var s Scalar
		if err := json.Unmarshal([]byte(tc.in), &s); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.in, err)
		}
		if s.IsNumber() != tc.number || s.Raw() != tc.raw {
			t.Fatalf("%s: got number=%v raw=%q", tc.in, s.IsNumber(), s.Raw())
		}
		out, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.in, err)
		}
		if string(out) != tc.encoded {
			t.Fatalf("%s: expected %s, got %s", tc.in, tc.encoded, out)
		}
	}
}

func TestScalarJSONRejectsOtherTypes(t *testing.T) {
	for _, in := range []string{`true`, `{"a":1}`, `[1]`} {
		var s Scalar
		if err := json.Unmarshal([]byte(in), &s); err == nil {
			t.Fatalf("%s: expected error", in)
		}
	}

	var s Scalar
	if err := json.Unmarshal([]byte(`null`), &s); err != nil || !s.IsZero() {
		t.Fatalf("null should decode to the zero scalar, got %v, %v", s, err)
	}
}

func TestScalarYAML(t *testing.T) {
	var doc struct {
		Int   Scalar `yaml:"int"`
		Float Scalar `yaml:"float"`
		Str   Scalar `yaml:"str"`
		Quote Scalar `yaml:"quote"`
	}
	in := "int: 100\nfloat: 2.5\nstr: req/s\nquote: \"42\"\n"
	if err := yaml.Unmarshal([]byte(in), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Int != Number(100) || doc.Float != Number(2.5) || doc.Str != String("req/s") || doc.Quote != String("42") {
		t.Fatalf("unexpected decode %+v", doc)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("expected %q, got %q", in, out)
	}

	var bad struct {
		V Scalar `yaml:"v"`
	}
	if err := yaml.Unmarshal([]byte("v: [1, 2]\n"), &bad); !errors.Is(err, ErrInvalidScalar) {
		t.Fatalf("expected ErrInvalidScalar, got %v", err)
	}
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber("1.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.IsNumber() || n.Raw() != "1.50" {
		t.Fatalf("expected numeric 1.50, got %v", n)
	}

	for _, raw := range []string{"abc", "", "+12", ".5", "1.", "007", "0x1F", " 1", "1 ", "NaN", "Inf", "1e400", "-1e400"} {
		if _, err := ParseNumber(raw); !errors.Is(err, ErrInvalidScalar) {
			t.Fatalf("%q: expected ErrInvalidScalar, got %v", raw, err)
		}
	}
}

func TestScalarJSONRejectsOutOfRange(t *testing.T) {
	var s Scalar
	if err := json.Unmarshal([]byte(`1e400`), &s); !errors.Is(err, ErrInvalidScalar) {
		t.Fatalf("expected ErrInvalidScalar, got %v", err)
	}
}

func TestScalarYAMLCanonicalizesNumbers(t *testing.T) {
	cases := map[string]string{
		"+12":   "12",
		".5":    "0.5",
		"1.":    "1",
		"007":   "7",
		"0x1F":  "31",
		"-0.25": "-0.25",
		"1.50":  "1.50",
	}
	for in, want := range cases {
		var doc struct {
			V Scalar `yaml:"v"`
		}
		if err := yaml.Unmarshal([]byte("v: "+in+"\n"), &doc); err != nil {
			t.Fatalf("%s: unexpected error: %v", in, err)
		}
		if !doc.V.IsNumber() || doc.V.Raw() != want {
			t.Fatalf("%s: expected number %s, got %q", in, want, doc.V.Raw())
		}
		out, err := json.Marshal(doc.V)
		if err != nil || !json.Valid(out) {
			t.Fatalf("%s: expected valid JSON, got %s (%v)", in, out, err)
		}
	}

	var doc struct {
		V Scalar `yaml:"v"`
	}
	if err := yaml.Unmarshal([]byte("v: .inf\n"), &doc); !errors.Is(err, ErrInvalidScalar) {
		t.Fatalf("expected infinity to be rejected, got %v", err)
	}
}
