package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)

func newTestArchive(t *testing.T) (*Archive, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a := NewArchive(db, logger.NewTestLogger(t))
	a.now = func() time.Time { return fixedNow }
	return a, mock
}

func testRecord() *Record {
	return &Record{
		Itinerary: &models.Itinerary{
			ID:       "itin-1",
			Title:    "Goa Getaway",
			Location: "Goa",
			Days:     []models.Day{{Day: 1, Theme: "Beaches"}},
		},
		Request: &models.ParsedRequest{Type: models.RequestTravel, Location: "Goa", Participants: 4, Duration: 1},
		Research: &models.ResearchSummary{Research: models.ConsolidatedResearch{
			Venues: []models.Venue{{Name: "Britto's"}, {Name: "Baga Beach Shacks"}},
		}},
		DataQuality: models.DataQuality{SearchQuality: 80, ExtractionQuality: 70, IntegrationScore: 60, OverallScore: 70},
	}
}

// containsAll matches a converted pq array argument holding every name.
type containsAll []string

func (c containsAll) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, want := range c {
		if !strings.Contains(s, want) {
			return false
		}
	}
	return true
}

// ==========================
// Save
// ==========================

func TestArchive_Save(t *testing.T) {
	a, mock := newTestArchive(t)
	rec := testRecord()

	mock.ExpectExec(`INSERT INTO itineraries`).
		WithArgs("itin-1", "Goa Getaway", "Goa",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			containsAll{"Britto's", "Baga Beach Shacks"}, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO itinerary_events`).
		WithArgs("itin-1", "itinerary_saved", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, a.Save(context.Background(), rec))
	assert.Equal(t, "itin-1", rec.ID)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_Save_AuditFailureIsIgnored(t *testing.T) {
	a, mock := newTestArchive(t)

	mock.ExpectExec(`INSERT INTO itineraries`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO itinerary_events`).WillReturnError(errors.New("relation does not exist"))

	assert.NoError(t, a.Save(context.Background(), testRecord()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_Save_Errors(t *testing.T) {
	a, mock := newTestArchive(t)

	err := a.Save(context.Background(), &Record{})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	err = a.Save(context.Background(), &Record{Itinerary: &models.Itinerary{}})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	mock.ExpectExec(`INSERT INTO itineraries`).WillReturnError(errors.New("connection refused"))
	err = a.Save(context.Background(), testRecord())
	assert.Equal(t, apperrors.ErrCodeStoreFailed, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Load
// ==========================

func TestArchive_Load(t *testing.T) {
	a, mock := newTestArchive(t)
	rec := testRecord()

	itJSON, _ := json.Marshal(rec.Itinerary)
	researchJSON, _ := json.Marshal(rec.Research)
	requestJSON, _ := json.Marshal(rec.Request)
	qualityJSON, _ := json.Marshal(rec.DataQuality)

	rows := sqlmock.NewRows([]string{"id", "request", "itinerary", "research", "data_quality", "created_at", "updated_at"}).
		AddRow("itin-1", requestJSON, itJSON, researchJSON, qualityJSON, fixedNow, fixedNow)
	mock.ExpectQuery(`SELECT id, request, itinerary, research, data_quality, created_at, updated_at FROM itineraries WHERE id = \$1`).
		WithArgs("itin-1").
		WillReturnRows(rows)

	got, err := a.Load(context.Background(), "itin-1")
	require.NoError(t, err)
	assert.Equal(t, "Goa Getaway", got.Itinerary.Title)
	assert.Equal(t, "Goa", got.Request.Location)
	require.NotNil(t, got.Research)
	assert.Len(t, got.Research.Research.Venues, 2)
	assert.Equal(t, 70.0, got.DataQuality.OverallScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_Load_WithoutResearch(t *testing.T) {
	a, mock := newTestArchive(t)

	rows := sqlmock.NewRows([]string{"id", "request", "itinerary", "research", "data_quality", "created_at", "updated_at"}).
		AddRow("itin-2", nil, []byte(`{"id":"itin-2","title":"Pune","days":[]}`), nil, []byte(`{}`), fixedNow, fixedNow)
	mock.ExpectQuery(`FROM itineraries`).WithArgs("itin-2").WillReturnRows(rows)

	got, err := a.Load(context.Background(), "itin-2")
	require.NoError(t, err)
	assert.Nil(t, got.Research)
	assert.Nil(t, got.Request)
	assert.Equal(t, "Pune", got.Itinerary.Title)
}

func TestArchive_Load_NotFound(t *testing.T) {
	a, mock := newTestArchive(t)

	mock.ExpectQuery(`FROM itineraries`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := a.Load(context.Background(), "missing")
	assert.Equal(t, apperrors.ErrCodeItineraryNotFound, apperrors.CodeOf(err))

	_, err = a.Load(context.Background(), "")
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

// ==========================
// UpdateItinerary
// ==========================

func TestArchive_UpdateItinerary(t *testing.T) {
	a, mock := newTestArchive(t)
	it := testRecord().Itinerary

	mock.ExpectExec(`UPDATE itineraries`).
		WithArgs("itin-1", sqlmock.AnyArg(), sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO itinerary_events`).
		WithArgs("itin-1", "itinerary_refined", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, a.UpdateItinerary(context.Background(), "itin-1", it, models.DataQuality{}, "basic"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_UpdateItinerary_NotFound(t *testing.T) {
	a, mock := newTestArchive(t)

	mock.ExpectExec(`UPDATE itineraries`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := a.UpdateItinerary(context.Background(), "gone", &models.Itinerary{}, models.DataQuality{}, "basic")
	assert.Equal(t, apperrors.ErrCodeItineraryNotFound, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchive_EnsureSchema(t *testing.T) {
	a, mock := newTestArchive(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS itineraries`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, a.EnsureSchema(context.Background()))

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))
	assert.Equal(t, apperrors.ErrCodeStoreFailed, apperrors.CodeOf(a.EnsureSchema(context.Background())))
}
