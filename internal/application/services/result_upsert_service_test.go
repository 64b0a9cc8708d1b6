package services

import (
	"context"
	"testing"
	"time"

	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpsertFixture() (*ResultUpsertService, *memResultRepo, *entities.TestType) {
	repo := newMemResultRepo()
	service := NewResultUpsertService(repo, NewEntityLocks())
	testType := &entities.TestType{ID: "tt-glucose", StandardName: "Blood Glucose"}
	return service, repo, testType
}

func glucoseResult() entities.ExtractedResult {
	return entities.ExtractedResult{
		LabTestName: "Glicemie",
		TestDate:    date(2024, time.March, 10),
		Value:       floatPtr(92.0),
		Unit:        strPtr("mg/dL"),
		LowerLimit:  floatPtr(70),
		UpperLimit:  floatPtr(99),
	}
}

func TestUpsertCreatesNewResult(t *testing.T) {
	service, repo, testType := newUpsertFixture()

	outcome, err := service.Upsert(context.Background(), "user-1", testType, "lab-1", "doc-1", glucoseResult())
	require.NoError(t, err)

	assert.Equal(t, entities.ResultCreated, outcome.Status)
	assert.False(t, outcome.Conflict)
	assert.Equal(t, "tt-glucose", outcome.TestTypeID)
	assert.Len(t, repo.results, 1)
}

func TestUpsertIsIdempotent(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	ctx := context.Background()

	outcome, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", glucoseResult())
	require.NoError(t, err)
	assert.Equal(t, entities.ResultCreated, outcome.Status)

	// Reprocessing the identical payload changes nothing.
	outcome, err = service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", glucoseResult())
	require.NoError(t, err)
	assert.Equal(t, entities.ResultUnchanged, outcome.Status)
	assert.False(t, outcome.Conflict)
	assert.Len(t, repo.results, 1)
}

func TestUpsertNaturalKeySeparatesDatesAndLabs(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	ctx := context.Background()

	first := glucoseResult()
	_, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", first)
	require.NoError(t, err)

	laterDate := glucoseResult()
	laterDate.TestDate = date(2024, time.April, 2)
	outcome, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-2", laterDate)
	require.NoError(t, err)
	assert.Equal(t, entities.ResultCreated, outcome.Status)

	otherLab := glucoseResult()
	outcome, err = service.Upsert(ctx, "user-1", testType, "lab-2", "doc-3", otherLab)
	require.NoError(t, err)
	assert.Equal(t, entities.ResultCreated, outcome.Status)

	assert.Len(t, repo.results, 3)
}

func TestUpsertHistoricalMergeFillsNulls(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	ctx := context.Background()

	sparse := entities.ExtractedResult{
		LabTestName: "Glicemie",
		TestDate:    date(2024, time.March, 10),
		Value:       floatPtr(92.0),
	}
	_, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", sparse)
	require.NoError(t, err)

	richer := glucoseResult()
	richer.Interpretation = strPtr("within normal range")
	outcome, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-2", richer)
	require.NoError(t, err)

	assert.Equal(t, entities.ResultMerged, outcome.Status)
	assert.False(t, outcome.Conflict)

	stored := repo.results[entities.ResultKey{
		UserID: "user-1", TestTypeID: "tt-glucose",
		TestDate: date(2024, time.March, 10), LabID: "lab-1",
	}.String()]
	require.NotNil(t, stored)
	assert.Equal(t, 92.0, *stored.Value)
	assert.Equal(t, "mg/dL", *stored.Unit)
	assert.Equal(t, 70.0, *stored.LowerLimit)
	assert.Equal(t, "within normal range", *stored.Interpretation)
	assert.Equal(t, "doc-2", stored.SourceDocumentID)
}

func TestUpsertMergeNeverOverwritesNonNullSecondaryFields(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	ctx := context.Background()

	_, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", glucoseResult())
	require.NoError(t, err)

	differentUnit := glucoseResult()
	differentUnit.Unit = strPtr("mmol/L")
	outcome, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-2", differentUnit)
	require.NoError(t, err)
	assert.Equal(t, entities.ResultUnchanged, outcome.Status)

	stored := repo.results[entities.ResultKey{
		UserID: "user-1", TestTypeID: "tt-glucose",
		TestDate: date(2024, time.March, 10), LabID: "lab-1",
	}.String()]
	assert.Equal(t, "mg/dL", *stored.Unit)
}

func TestUpsertConflictingValueLastWriteWins(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	ctx := context.Background()

	_, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", glucoseResult())
	require.NoError(t, err)

	disagreeing := glucoseResult()
	disagreeing.Value = floatPtr(105.0)
	outcome, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-2", disagreeing)
	require.NoError(t, err)

	assert.Equal(t, entities.ResultMerged, outcome.Status)
	assert.True(t, outcome.Conflict)

	stored := repo.results[entities.ResultKey{
		UserID: "user-1", TestTypeID: "tt-glucose",
		TestDate: date(2024, time.March, 10), LabID: "lab-1",
	}.String()]
	assert.Equal(t, 105.0, *stored.Value)
	assert.Equal(t, "doc-2", stored.SourceDocumentID)
}

func TestUpsertRepresentationMismatchFlagsConflictAndClearsSuperseded(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	ctx := context.Background()

	_, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", glucoseResult())
	require.NoError(t, err)

	qualitative := entities.QualitativeValue("NORMAL")
	incoming := entities.ExtractedResult{
		LabTestName:     "Glicemie",
		TestDate:        date(2024, time.March, 10),
		ValueText:       strPtr("normal"),
		ValueNormalized: &qualitative,
	}
	outcome, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-2", incoming)
	require.NoError(t, err)

	assert.Equal(t, entities.ResultMerged, outcome.Status)
	assert.True(t, outcome.Conflict)

	stored := repo.results[entities.ResultKey{
		UserID: "user-1", TestTypeID: "tt-glucose",
		TestDate: date(2024, time.March, 10), LabID: "lab-1",
	}.String()]
	assert.Nil(t, stored.Value)
	require.NotNil(t, stored.ValueText)
	assert.Equal(t, "normal", *stored.ValueText)
	require.NotNil(t, stored.ValueNormalized)
	assert.Equal(t, qualitative, *stored.ValueNormalized)
}

func TestUpsertQualitativeAgreementFillsMissingRendering(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	ctx := context.Background()

	textOnly := entities.ExtractedResult{
		LabTestName: "HBs Antigen",
		TestDate:    date(2024, time.March, 10),
		ValueText:   strPtr("negativ"),
	}
	_, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", textOnly)
	require.NoError(t, err)

	negative := entities.QualitativeValue("NEGATIVE")
	withTag := textOnly
	withTag.ValueNormalized = &negative
	outcome, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-2", withTag)
	require.NoError(t, err)

	assert.Equal(t, entities.ResultMerged, outcome.Status)
	assert.False(t, outcome.Conflict)

	stored := repo.results[entities.ResultKey{
		UserID: "user-1", TestTypeID: "tt-glucose",
		TestDate: date(2024, time.March, 10), LabID: "lab-1",
	}.String()]
	require.NotNil(t, stored.ValueNormalized)
	assert.Equal(t, negative, *stored.ValueNormalized)
	assert.Equal(t, "negativ", *stored.ValueText)
}

func TestUpsertLabTestNameTracksLatestSpelling(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	ctx := context.Background()

	_, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-1", glucoseResult())
	require.NoError(t, err)

	renamed := glucoseResult()
	renamed.LabTestName = "Glucoza serica"
	outcome, err := service.Upsert(ctx, "user-1", testType, "lab-1", "doc-2", renamed)
	require.NoError(t, err)
	assert.Equal(t, entities.ResultMerged, outcome.Status)
	assert.False(t, outcome.Conflict)

	stored := repo.results[entities.ResultKey{
		UserID: "user-1", TestTypeID: "tt-glucose",
		TestDate: date(2024, time.March, 10), LabID: "lab-1",
	}.String()]
	assert.Equal(t, "Glucoza serica", stored.LabTestName)
}

func TestUpsertRetriesOnceOnInsertCollision(t *testing.T) {
	service, repo, testType := newUpsertFixture()
	repo.failInsertsOnce = true

	// The fake installs a "concurrent" row and reports a unique violation;
	// the retry must find that row and merge into it.
	outcome, err := service.Upsert(context.Background(), "user-1", testType, "lab-1", "doc-2", glucoseResult())
	require.NoError(t, err)
	assert.Equal(t, entities.ResultUnchanged, outcome.Status)
	assert.Len(t, repo.results, 1)
}
