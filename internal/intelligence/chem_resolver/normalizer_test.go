package chem_resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_BuiltinTable(t *testing.T) {
	cases := map[string]string{
		"H(2)O":               "water",
		"CO(2)":               "carbon dioxide",
		"An alcohol":          "alcohol",
		"A secondary alcohol": "secondary alcohol",
		"O(2)":                "dioxygen",
		"H(+)":                "hydron",
		"a ketone":            "ketone",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNormalize_PassThrough(t *testing.T) {
	for _, s := range []string{"NAD(+)", "an aldehyde", "A ketone", "h(2)o", "", "water"} {
		assert.Equal(t, s, Normalize(s))
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for in := range builtinSubstitutions {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func TestNewNormalizer_ExtraOverridesBuiltin(t *testing.T) {
	n := NewNormalizer(map[string]string{
		"NAD(+)": "NAD(+) zwitterion",
		"H(+)":   "proton",
		"":       "ignored",
		"empty":  "",
	})
	assert.Equal(t, "NAD(+) zwitterion", n.Normalize("NAD(+)"))
	assert.Equal(t, "proton", n.Normalize("H(+)"))
	assert.Equal(t, "water", n.Normalize("H(2)O"))
	assert.Equal(t, "empty", n.Normalize("empty"))
	assert.Equal(t, len(builtinSubstitutions)+1, n.Len())

	assert.Equal(t, "hydron", Normalize("H(+)"), "built-in table is not mutated")
}

func TestNormalizer_NilUsesBuiltin(t *testing.T) {
	var n *Normalizer
	assert.Equal(t, "dioxygen", n.Normalize("O(2)"))
}
