package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"mixed case and blanks", []string{"Go", " go ", "GO", ""}, []string{"go"}},
		{"keeps distinct names", []string{"API", "api", "Test"}, []string{"api", "test"}},
		{"sorted output", []string{"zeta", "Alpha", " mid "}, []string{"alpha", "mid", "zeta"}},
		{"only whitespace", []string{" ", "\t", ""}, []string{}},
		{"nil input", nil, []string{}},
		{"inner spaces survive", []string{"  Machine Learning "}, []string{"machine learning"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIgnoresOrderAndMultiplicity(t *testing.T) {
	a := Normalize([]string{"b", "A", "c", "a", "B"})
	b := Normalize([]string{"C", "c", "c", "b", "a"})
	assert.Equal(t, a, b)
}

func TestDiff(t *testing.T) {
	toAdd, toRemove := Diff([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"c"}, toAdd)
	assert.Equal(t, []string{"a"}, toRemove)

	toAdd, toRemove = Diff([]string{"a", "b"}, []string{"b", "a"})
	assert.Empty(t, toAdd)
	assert.Empty(t, toRemove)

	toAdd, toRemove = Diff(nil, []string{"x"})
	assert.Equal(t, []string{"x"}, toAdd)
	assert.Empty(t, toRemove)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "golang", Canonical("  GoLang\n"))
	assert.Equal(t, "", Canonical("   "))
}
