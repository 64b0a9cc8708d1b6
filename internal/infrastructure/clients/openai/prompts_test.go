package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorincom/analize-new/internal/domain/providers"
)

var testShortlist = []providers.MatchCandidate{
	{ID: "lab-1", Descriptor: "Synevo, Str. Observatorului 1, Cluj-Napoca"},
	{ID: "lab-2", Descriptor: "Regina Maria, Bd. Unirii 10, Bucuresti"},
}

func TestParseVerdictMatch(t *testing.T) {
	verdict, err := parseVerdict(`{"match": true, "id": "lab-2"}`, testShortlist)
	require.NoError(t, err)
	assert.True(t, verdict.Matched)
	assert.Equal(t, "lab-2", verdict.MatchedID)
}

func TestParseVerdictNoMatch(t *testing.T) {
	verdict, err := parseVerdict(`{"match": false}`, testShortlist)
	require.NoError(t, err)
	assert.False(t, verdict.Matched)
	assert.Empty(t, verdict.MatchedID)
}

func TestParseVerdictStripsCodeFences(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "json fence", text: "```json\n{\"match\": true, \"id\": \"lab-1\"}\n```"},
		{name: "bare fence", text: "```\n{\"match\": true, \"id\": \"lab-1\"}\n```"},
		{name: "surrounding whitespace", text: "  {\"match\": true, \"id\": \"lab-1\"}  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := parseVerdict(tt.text, testShortlist)
			require.NoError(t, err)
			assert.True(t, verdict.Matched)
			assert.Equal(t, "lab-1", verdict.MatchedID)
		})
	}
}

func TestParseVerdictInvalidJSON(t *testing.T) {
	_, err := parseVerdict("the new entity matches lab-1", testShortlist)
	assert.ErrorIs(t, err, providers.ErrAmbiguousVerdict)
}

func TestParseVerdictInventedID(t *testing.T) {
	// A positive verdict pointing outside the offered shortlist must not be
	// downgraded to a no-match, because a no-match triggers entity creation.
	_, err := parseVerdict(`{"match": true, "id": "lab-99"}`, testShortlist)
	assert.ErrorIs(t, err, providers.ErrAmbiguousVerdict)
}

func TestBuildMatcherUserPrompt(t *testing.T) {
	prompt := buildMatcherUserPrompt("Synevo Cluj, Str. Observatorului 1", testShortlist)
	assert.Contains(t, prompt, "New entity:\nSynevo Cluj, Str. Observatorului 1")
	assert.Contains(t, prompt, "- ID: lab-1, Synevo, Str. Observatorului 1, Cluj-Napoca")
	assert.Contains(t, prompt, "- ID: lab-2, Regina Maria, Bd. Unirii 10, Bucuresti")
}
