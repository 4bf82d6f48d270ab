// internal/store/archive.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/models"
)

// Schema creates the archive tables. EnsureSchema runs it at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS itineraries (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	location      TEXT NOT NULL,
	request       JSONB,
	itinerary     JSONB NOT NULL,
	research      JSONB,
	data_quality  JSONB NOT NULL,
	venue_names   TEXT[] NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS itinerary_events (
	id            BIGSERIAL PRIMARY KEY,
	itinerary_id  TEXT NOT NULL,
	event_type    TEXT NOT NULL,
	details       JSONB,
	created_at    TIMESTAMPTZ NOT NULL
);`

// Record is one archived itinerary with the context needed to refine it later.
type Record struct {
	ID          string                  `json:"id"`
	Itinerary   *models.Itinerary       `json:"itinerary"`
	Research    *models.ResearchSummary `json:"research,omitempty"`
	Request     *models.ParsedRequest   `json:"request,omitempty"`
	DataQuality models.DataQuality      `json:"dataQuality"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// Archive keeps finished itineraries in Postgres, keyed by itinerary id.
type Archive struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewArchive(db *sql.DB, log logger.Logger) *Archive {
	return &Archive{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "archive"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, Schema); err != nil {
		return apperrors.NewStoreFailedError("schema", err)
	}
	return nil
}

// Save inserts rec or replaces the row with the same id.
func (a *Archive) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Itinerary == nil {
		return apperrors.NewInvalidInputError("itinerary is required")
	}
	if rec.ID == "" {
		rec.ID = rec.Itinerary.ID
	}
	if rec.ID == "" {
		return apperrors.NewInvalidInputError("itinerary id is required")
	}

	itJSON, err := json.Marshal(rec.Itinerary)
	if err != nil {
		return apperrors.NewStoreFailedError("save", err)
	}
	qualityJSON, err := json.Marshal(rec.DataQuality)
	if err != nil {
		return apperrors.NewStoreFailedError("save", err)
	}
	var requestJSON, researchJSON []byte
	if rec.Request != nil {
		if requestJSON, err = json.Marshal(rec.Request); err != nil {
			return apperrors.NewStoreFailedError("save", err)
		}
	}
	var venues []string
	if rec.Research != nil {
		if researchJSON, err = json.Marshal(rec.Research); err != nil {
			return apperrors.NewStoreFailedError("save", err)
		}
		for _, v := range rec.Research.Research.Venues {
			venues = append(venues, v.Name)
		}
	}
	if venues == nil {
		venues = []string{}
	}

	now := a.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO itineraries (
			id, title, location, request, itinerary,
			research, data_quality, venue_names, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			location = EXCLUDED.location,
			request = EXCLUDED.request,
			itinerary = EXCLUDED.itinerary,
			research = EXCLUDED.research,
			data_quality = EXCLUDED.data_quality,
			venue_names = EXCLUDED.venue_names,
			updated_at = EXCLUDED.updated_at`,
		rec.ID,
		rec.Itinerary.Title,
		rec.Itinerary.Location,
		requestJSON,
		itJSON,
		researchJSON,
		qualityJSON,
		pq.Array(venues),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewStoreFailedError("save", err)
	}

	a.audit(ctx, rec.ID, "itinerary_saved", map[string]interface{}{
		"overallScore": rec.DataQuality.OverallScore,
		"venues":       len(venues),
	})
	a.logger.Info("itinerary archived", map[string]interface{}{
		"itineraryId": rec.ID,
		"venues":      len(venues),
	})
	return nil
}

// Load returns the archived record for id.
func (a *Archive) Load(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, apperrors.NewInvalidInputError("itinerary id is required")
	}

	var (
		rec                               Record
		requestJSON, itJSON, researchJSON []byte
		qualityJSON                       []byte
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT id, request, itinerary, research, data_quality, created_at, updated_at
		FROM itineraries
		WHERE id = $1`, id).Scan(
		&rec.ID, &requestJSON, &itJSON, &researchJSON, &qualityJSON,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewItineraryNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailedError("load", err)
	}

	if err := json.Unmarshal(itJSON, &rec.Itinerary); err != nil {
		return nil, apperrors.NewStoreFailedError("load", fmt.Errorf("decode itinerary: %w", err))
	}
	if err := json.Unmarshal(qualityJSON, &rec.DataQuality); err != nil {
		return nil, apperrors.NewStoreFailedError("load", fmt.Errorf("decode data quality: %w", err))
	}
	if len(requestJSON) > 0 {
		if err := json.Unmarshal(requestJSON, &rec.Request); err != nil {
			return nil, apperrors.NewStoreFailedError("load", fmt.Errorf("decode request: %w", err))
		}
	}
	if len(researchJSON) > 0 {
		if err := json.Unmarshal(researchJSON, &rec.Research); err != nil {
			return nil, apperrors.NewStoreFailedError("load", fmt.Errorf("decode research: %w", err))
		}
	}
	return &rec, nil
}

// UpdateItinerary replaces the itinerary and quality of an existing record.
func (a *Archive) UpdateItinerary(ctx context.Context, id string, it *models.Itinerary, quality models.DataQuality, refinementType string) error {
	itJSON, err := json.Marshal(it)
	if err != nil {
		return apperrors.NewStoreFailedError("update", err)
	}
	qualityJSON, err := json.Marshal(quality)
	if err != nil {
		return apperrors.NewStoreFailedError("update", err)
	}

	res, err := a.db.ExecContext(ctx, `
		UPDATE itineraries
		SET itinerary = $2, data_quality = $3, updated_at = $4
		WHERE id = $1`, id, itJSON, qualityJSON, a.now())
	if err != nil {
		return apperrors.NewStoreFailedError("update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewItineraryNotFoundError(id)
	}

	a.audit(ctx, id, "itinerary_refined", map[string]interface{}{
		"refinementType":  refinementType,
		"refinementCount": len(it.RefinementHistory),
	})
	return nil
}

// audit is best effort; a failed insert only logs.
func (a *Archive) audit(ctx context.Context, id, eventType string, details map[string]interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO itinerary_events (itinerary_id, event_type, details, created_at)
		VALUES ($1, $2, $3, $4)`,
		id, eventType, detailsJSON, a.now(),
	)
	if err != nil {
		a.logger.Warn("itinerary event insert failed", map[string]interface{}{
			"error":       err,
			"itineraryId": id,
			"eventType":   eventType,
		})
	}
}
