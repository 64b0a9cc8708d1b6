package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "lowercases and splits on punctuation",
			input:    "Synevo - Cluj (Centru)",
			expected: []string{"synevo", "cluj", "centru"},
		},
		{
			name:     "drops filler words and single characters",
			input:    "Laboratoarele S de Analize SRL",
			expected: []string{"laboratoarele", "analize"},
		},
		{
			name:     "keeps digits",
			input:    "Vitamin B12",
			expected: []string{"vitamin", "b12"},
		},
		{
			name:     "empty input",
			input:    "   ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokens(tt.input))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "synevo_cluj", Key("Synevo Cluj"))
	assert.Equal(t, Key("SYNEVO, Cluj!"), Key("synevo cluj"))
	assert.Equal(t, "", Key(""))
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{
			name:     "exact shared token",
			a:        "Synevo Cluj",
			b:        "Synevo Bucuresti",
			expected: 1,
		},
		{
			name:     "prefix of at least four characters counts",
			a:        "Regina Maria Laboratory",
			b:        "Regina Maria Laboratories",
			expected: 3,
		},
		{
			name:     "short prefixes do not count",
			a:        "lab one",
			b:        "label one",
			expected: 1,
		},
		{
			name:     "no shared tokens",
			a:        "Glicemie",
			b:        "Colesterol total",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Overlap(Tokens(tt.a), Tokens(tt.b)))
		})
	}
}

func TestAnyOverlap(t *testing.T) {
	assert.True(t, AnyOverlap("Glicemie bazala", "Glicemie"))
	assert.False(t, AnyOverlap("Glucoza serica", "Glicemie"))
	assert.False(t, AnyOverlap("", "Glicemie"))
}
