package matching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/sorincom/analize-new/internal/domain/providers"
	"github.com/sorincom/analize-new/internal/infrastructure/observability"
)

const verdictKeyPrefix = "matcher:verdict:"

// CachedMatcher decorates a SimilarityMatcher with verdict caching. The cache
// key fingerprints both the descriptor and the candidate set, so a shortlist
// that has since gained or lost candidates never replays a stale verdict.
// Failures of the inner matcher are never cached; a later call must retry.
type CachedMatcher struct {
	inner      providers.SimilarityMatcher
	cache      providers.CacheProvider
	ttlSeconds int
	metrics    *observability.Metrics
}

// NewCachedMatcher creates a caching decorator around a matcher. A nil cache
// degrades to pass-through. ttlSeconds of zero keeps verdicts indefinitely.
func NewCachedMatcher(inner providers.SimilarityMatcher, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) providers.SimilarityMatcher {
	return &CachedMatcher{
		inner:      inner,
		cache:      cache,
		ttlSeconds: ttlSeconds,
		metrics:    metrics,
	}
}

// Resolve answers from the verdict cache when possible, otherwise delegates
// and stores the successful verdict.
func (m *CachedMatcher) Resolve(ctx context.Context, descriptor string, shortlist []providers.MatchCandidate) (providers.MatchVerdict, error) {
	if m.cache == nil {
		return m.inner.Resolve(ctx, descriptor, shortlist)
	}

	key := verdictKey(descriptor, shortlist)

	if data, err := m.cache.Get(ctx, key); err == nil {
		var verdict providers.MatchVerdict
		if err := json.Unmarshal(data, &verdict); err == nil {
			if m.metrics != nil {
				observability.RecordCacheHit(ctx, m.metrics, verdictKeyPrefix)
			}
			return verdict, nil
		}
		// A corrupt entry is dropped and resolved fresh.
		_ = m.cache.Delete(ctx, key)
	}

	if m.metrics != nil {
		observability.RecordCacheMiss(ctx, m.metrics, verdictKeyPrefix)
	}

	verdict, err := m.inner.Resolve(ctx, descriptor, shortlist)
	if err != nil {
		return verdict, err
	}

	if data, err := json.Marshal(verdict); err == nil {
		// Cache write failures are tolerated; the verdict is still valid.
		_ = m.cache.Set(ctx, key, data, m.ttlSeconds)
	}

	return verdict, nil
}

// verdictKey fingerprints the full matcher input. Candidate order is
// normalized so shortlists that differ only in enumeration order share an
// entry.
func verdictKey(descriptor string, shortlist []providers.MatchCandidate) string {
	ids := make([]string, 0, len(shortlist))
	for _, candidate := range shortlist {
		ids = append(ids, candidate.ID+"\x00"+candidate.Descriptor)
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(descriptor))
	for _, id := range ids {
		h.Write([]byte{0x1f})
		h.Write([]byte(id))
	}

	return verdictKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
