package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var resistorAttrs = []string{"Resistance", "Tolerance", "Power Rating", "Package"}

func TestEncodeValue_DeclaredOrderThenExtras(t *testing.T) {
	attrs := Attributes{
		"Package":    "0805",
		"Resistance": "10k",
		"Zeta":       "z",
		"Alpha":      "a",
		"Tolerance":  "",
	}

	got := EncodeValue(attrs, resistorAttrs)

	assert.Equal(t, "Resistance: 10k, Package: 0805, Alpha: a, Zeta: z", got)
}

func TestEncodeValue_RawWins(t *testing.T) {
	attrs := Attributes{"Resistance": "10k", RawValueKey: "10k 1%"}
	assert.Equal(t, "10k 1%", EncodeValue(attrs, resistorAttrs))
}

func TestParseValue_Canonical(t *testing.T) {
	got := ParseValue("Resistance: 10k, Tolerance: 1%", resistorAttrs)

	assert.Equal(t, Attributes{"Resistance": "10k", "Tolerance": "1%"}, got)
}

func TestParseValue_PrefixAndCaseInsensitiveKeys(t *testing.T) {
	got := ParseValue("resist: 4.7k, power: 1/4W", resistorAttrs)

	assert.Equal(t, "4.7k", got["Resistance"])
	assert.Equal(t, "1/4W", got["Power Rating"])
	raw, ok := got.Raw()
	assert.True(t, ok)
	assert.Equal(t, "resist: 4.7k, power: 1/4W", raw)
}

func TestParseValue_FreeText(t *testing.T) {
	got := ParseValue("10k 1% 0805", resistorAttrs)

	assert.Equal(t, Attributes{RawValueKey: "10k 1% 0805"}, got)
}

func TestParseValue_Empty(t *testing.T) {
	assert.Empty(t, ParseValue("   ", resistorAttrs))
}

func TestValueRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "value")
		declared := rapid.SliceOfN(rapid.SampledFrom(resistorAttrs), 0, 4).Draw(t, "declared")

		got := EncodeValue(ParseValue(text, declared), declared)
		if want := strings.TrimSpace(text); got != want {
			t.Fatalf("round trip of %q = %q", want, got)
		}
	})
}

func TestValueRoundTrip_Structured(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attrs := Attributes{}
		for _, name := range resistorAttrs {
			v := rapid.StringMatching(`[A-Za-z0-9%./]{0,8}`).Draw(t, name)
			if v != "" {
				attrs[name] = v
			}
		}

		parsed := ParseValue(EncodeValue(attrs, resistorAttrs), resistorAttrs)
		if _, raw := parsed.Raw(); raw {
			t.Fatalf("canonical encoding of %v fell back to raw text", attrs)
		}
		assert.Equal(t, attrs, parsed)
	})
}
