package services

import (
	"context"
	"testing"

	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/providers"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTestTypeResolverCreatesWithSuggestedStandardName(t *testing.T) {
	repo := &memTestTypeRepo{}
	matcher := new(mockMatcher)
	service := NewTestTypeResolverService(repo, matcher, NewEntityLocks(), 20)

	testType, created, err := service.Resolve(context.Background(), "lab-1", entities.ExtractedResult{
		LabTestName:           "Glicemie",
		SuggestedStandardName: "Blood Glucose",
	})
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, "Blood Glucose", testType.StandardName)
	matcher.AssertNotCalled(t, "Resolve")

	aliases, _ := repo.ListAliasesByTestType(context.Background(), testType.ID)
	require.Len(t, aliases, 1)
	assert.Equal(t, "Glicemie", aliases[0].LabTestName)
	assert.Equal(t, "lab-1", aliases[0].LabID)
}

func TestTestTypeResolverFallsBackToLabTestName(t *testing.T) {
	repo := &memTestTypeRepo{}
	service := NewTestTypeResolverService(repo, new(mockMatcher), NewEntityLocks(), 20)

	testType, created, err := service.Resolve(context.Background(), "lab-1", entities.ExtractedResult{
		LabTestName: "Hemoglobina A1c",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Hemoglobina A1c", testType.StandardName)
}

func TestTestTypeResolverMatchRecordsAlias(t *testing.T) {
	repo := &memTestTypeRepo{}
	matcher := new(mockMatcher)
	service := NewTestTypeResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.TestType{ID: "tt-1", StandardName: "Blood Glucose"}))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{Matched: true, MatchedID: "tt-1"}, nil).Once()

	testType, created, err := service.Resolve(ctx, "lab-2", entities.ExtractedResult{
		LabTestName: "Glucose, serum",
	})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, "tt-1", testType.ID)

	aliases, _ := repo.ListAliasesByTestType(ctx, "tt-1")
	require.Len(t, aliases, 1)
	assert.Equal(t, "Glucose, serum", aliases[0].LabTestName)

	types, _ := repo.List(ctx)
	assert.Len(t, types, 1)
}

func TestTestTypeResolverAliasWidensShortlist(t *testing.T) {
	repo := &memTestTypeRepo{}
	matcher := new(mockMatcher)
	service := NewTestTypeResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	// Standard name shares no tokens with the incoming name; only the
	// recorded alias connects them.
	require.NoError(t, repo.Create(ctx, &entities.TestType{ID: "tt-1", StandardName: "Blood Glucose"}))
	require.NoError(t, repo.EnsureAlias(ctx, &entities.LabTestAlias{
		TestTypeID: "tt-1", LabID: "lab-1", LabTestName: "Glicemie",
	}))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{Matched: true, MatchedID: "tt-1"}, nil).Once()

	testType, created, err := service.Resolve(ctx, "lab-2", entities.ExtractedResult{
		LabTestName: "Glicemie bazala",
	})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, "tt-1", testType.ID)
	matcher.AssertNumberOfCalls(t, "Resolve", 1)
}

func TestTestTypeResolverAliasRecordingIsIdempotent(t *testing.T) {
	repo := &memTestTypeRepo{}
	matcher := new(mockMatcher)
	service := NewTestTypeResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.TestType{ID: "tt-1", StandardName: "Blood Glucose"}))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{Matched: true, MatchedID: "tt-1"}, nil).Twice()

	for i := 0; i < 2; i++ {
		_, _, err := service.Resolve(ctx, "lab-2", entities.ExtractedResult{LabTestName: "Glucose, serum"})
		require.NoError(t, err)
	}

	aliases, _ := repo.ListAliasesByTestType(ctx, "tt-1")
	assert.Len(t, aliases, 1)
}

func TestTestTypeResolverOutageWithCandidatesFailsOnlyThisTest(t *testing.T) {
	repo := &memTestTypeRepo{}
	matcher := new(mockMatcher)
	service := NewTestTypeResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.TestType{ID: "tt-1", StandardName: "Blood Glucose"}))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{}, providers.ErrMatcherUnavailable).Once()

	_, _, err := service.Resolve(ctx, "lab-1", entities.ExtractedResult{LabTestName: "Glucose, serum"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	// No speculative creation alongside an unjudged candidate.
	types, _ := repo.List(ctx)
	assert.Len(t, types, 1)
}

func TestTestTypeResolverOutageWithEmptyShortlistStillCreates(t *testing.T) {
	repo := &memTestTypeRepo{}
	matcher := new(mockMatcher)
	service := NewTestTypeResolverService(repo, matcher, NewEntityLocks(), 20)

	// Matcher is down, but with no candidates it is never consulted, so the
	// create path works regardless.
	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{}, providers.ErrMatcherUnavailable)

	testType, created, err := service.Resolve(context.Background(), "lab-1", entities.ExtractedResult{
		LabTestName: "Vitamina D3",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Vitamina D3", testType.StandardName)
	matcher.AssertNotCalled(t, "Resolve")
}

func TestTestTypeResolverAmbiguousVerdictTreatedAsNoMatch(t *testing.T) {
	repo := &memTestTypeRepo{}
	matcher := new(mockMatcher)
	service := NewTestTypeResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.TestType{ID: "tt-1", StandardName: "Blood Glucose"}))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{}, providers.ErrAmbiguousVerdict).Once()

	testType, created, err := service.Resolve(ctx, "lab-1", entities.ExtractedResult{
		LabTestName: "Glucose, serum",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "tt-1", testType.ID)
}
