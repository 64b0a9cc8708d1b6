package providers

import (
	"context"
	"errors"
)

// ErrMatcherUnavailable is returned when the similarity matcher cannot be
// reached or times out. Callers decide per entity kind whether to degrade to
// create-new or abort; the verdict cache never stores this condition.
var ErrMatcherUnavailable = errors.New("similarity matcher unavailable")

// ErrAmbiguousVerdict is returned when the matcher answered but the answer
// cannot be acted on, e.g. malformed output or a matched id that is not in
// the shortlist it was given.
var ErrAmbiguousVerdict = errors.New("ambiguous matcher verdict")

// MatchCandidate is one existing canonical record offered to the matcher.
type MatchCandidate struct {
	ID         string `json:"id"`
	Descriptor string `json:"descriptor"`
}

// MatchVerdict is the matcher's boolean decision. No confidence score is
// exposed: downstream logic only branches on matched / not matched.
type MatchVerdict struct {
	Matched   bool   `json:"matched"`
	MatchedID string `json:"matched_id,omitempty"`
}

// SimilarityMatcher answers "is this new descriptor the same real-world
// entity as one of these existing ones?". Implementations must be
// deterministic enough to cache: identical (descriptor, shortlist) input must
// be safe to answer from a stored verdict.
type SimilarityMatcher interface {
	Resolve(ctx context.Context, descriptor string, shortlist []MatchCandidate) (MatchVerdict, error)
}
