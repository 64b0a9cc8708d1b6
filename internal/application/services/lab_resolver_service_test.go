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

func TestLabResolverCreatesWhenNothingSimilarExists(t *testing.T) {
	repo := &memLabRepo{}
	matcher := new(mockMatcher)
	service := NewLabResolverService(repo, matcher, NewEntityLocks(), 20)

	lab, status, err := service.Resolve(context.Background(), entities.LabDescriptor{
		Name:    "Synevo Bucuresti",
		Address: strPtr("Str. Aviatorilor 10"),
	})
	require.NoError(t, err)

	assert.Equal(t, entities.LabCreated, status)
	assert.Equal(t, "Synevo Bucuresti", lab.Name)
	assert.Equal(t, "Str. Aviatorilor 10", *lab.Address)
	// With an empty shortlist the oracle must not be consulted at all.
	matcher.AssertNotCalled(t, "Resolve")
}

func TestLabResolverMatchesAndEnriches(t *testing.T) {
	repo := &memLabRepo{}
	matcher := new(mockMatcher)
	service := NewLabResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	existing := &entities.Lab{ID: "lab-1", Name: "Synevo", Phone: strPtr("021-555-0000")}
	require.NoError(t, repo.Create(ctx, existing))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{Matched: true, MatchedID: "lab-1"}, nil).Once()

	lab, status, err := service.Resolve(ctx, entities.LabDescriptor{
		Name:    "Synevo Laboratory",
		Address: strPtr("Str. Aviatorilor 10"),
		Phone:   strPtr("021-999-9999"),
	})
	require.NoError(t, err)

	assert.Equal(t, entities.LabMatched, status)
	assert.Equal(t, "lab-1", lab.ID)
	// Null fields are filled, non-null fields survive untouched.
	assert.Equal(t, "Str. Aviatorilor 10", *lab.Address)
	assert.Equal(t, "021-555-0000", *lab.Phone)
	assert.Equal(t, "Synevo", lab.Name)
}

func TestLabResolverCreatesOnNoMatchVerdict(t *testing.T) {
	repo := &memLabRepo{}
	matcher := new(mockMatcher)
	service := NewLabResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.Lab{ID: "lab-1", Name: "Synevo Iasi"}))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{}, nil).Once()

	lab, status, err := service.Resolve(ctx, entities.LabDescriptor{Name: "Synevo Cluj"})
	require.NoError(t, err)

	assert.Equal(t, entities.LabCreated, status)
	assert.NotEqual(t, "lab-1", lab.ID)

	labs, _ := repo.List(ctx)
	assert.Len(t, labs, 2)
}

func TestLabResolverMatcherOutageAbortsDocument(t *testing.T) {
	repo := &memLabRepo{}
	matcher := new(mockMatcher)
	service := NewLabResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.Lab{ID: "lab-1", Name: "Synevo"}))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{}, providers.ErrMatcherUnavailable).Once()

	_, _, err := service.Resolve(ctx, entities.LabDescriptor{Name: "Synevo Laboratory"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	// No guessed creation while the matcher is down.
	labs, _ := repo.List(ctx)
	assert.Len(t, labs, 1)
}

func TestLabResolverAmbiguousVerdictIsFatal(t *testing.T) {
	repo := &memLabRepo{}
	matcher := new(mockMatcher)
	service := NewLabResolverService(repo, matcher, NewEntityLocks(), 20)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.Lab{ID: "lab-1", Name: "Synevo"}))

	matcher.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(providers.MatchVerdict{}, providers.ErrAmbiguousVerdict).Once()

	_, _, err := service.Resolve(ctx, entities.LabDescriptor{Name: "Synevo Laboratory"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))

	labs, _ := repo.List(ctx)
	assert.Len(t, labs, 1)
}

func TestLabResolverRejectsEmptyName(t *testing.T) {
	service := NewLabResolverService(&memLabRepo{}, new(mockMatcher), NewEntityLocks(), 20)

	_, _, err := service.Resolve(context.Background(), entities.LabDescriptor{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
