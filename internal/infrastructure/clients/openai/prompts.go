package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sorincom/analize-new/internal/domain/providers"
)

const matcherSystemPrompt = `You are a medical entity matching system for laboratory records. You are shown a new entity (a laboratory, or a lab test name) and a numbered list of existing canonical entities.

Decide whether the new entity is the SAME real-world entity as exactly one of the existing ones.

Consider:
- Different languages (e.g., "Glucoza" = "Blood Glucose")
- Abbreviations and naming conventions (e.g., "CBC" = "Complete Blood Count", "MedLife Lab" = "MedLife Laboratory")
- Regional spelling variations
- Same organization at a different address is a DIFFERENT entity

If it matches an existing entity, respond with:
{"match": true, "id": "<existing id>"}

If it matches none of them, respond with:
{"match": false}

Return ONLY the JSON object.`

func buildMatcherUserPrompt(descriptor string, shortlist []providers.MatchCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New entity:\n%s\n\nExisting entities:\n", descriptor)
	for _, candidate := range shortlist {
		fmt.Fprintf(&b, "- ID: %s, %s\n", candidate.ID, candidate.Descriptor)
	}
	return b.String()
}

type verdictPayload struct {
	Match bool   `json:"match"`
	ID    string `json:"id"`
}

// parseVerdict decodes the model output and validates a positive match
// against the shortlist it was offered. A matched id the model invented is an
// ambiguous verdict, never a silent no-match.
func parseVerdict(text string, shortlist []providers.MatchCandidate) (providers.MatchVerdict, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return providers.MatchVerdict{}, fmt.Errorf("%w: %v", providers.ErrAmbiguousVerdict, err)
	}

	if !payload.Match {
		return providers.MatchVerdict{}, nil
	}

	for _, candidate := range shortlist {
		if candidate.ID == payload.ID {
			return providers.MatchVerdict{Matched: true, MatchedID: payload.ID}, nil
		}
	}

	return providers.MatchVerdict{}, fmt.Errorf("%w: matched id %q not in shortlist", providers.ErrAmbiguousVerdict, payload.ID)
}
