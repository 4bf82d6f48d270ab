// internal/store/venues.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/models"
)

const DefaultVenueIndex = "itinerary-venues"

// VenueDocument is a researched venue as stored in the index.
type VenueDocument struct {
	models.Venue
	ItineraryID string `json:"itineraryId"`
	City        string `json:"city"`
}

// VenueIndex keeps consolidated research venues searchable across itineraries.
type VenueIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewVenueIndex(client *elasticsearch.Client, index string, log logger.Logger) *VenueIndex {
	if index == "" {
		index = DefaultVenueIndex
	}
	return &VenueIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "venue-index"}),
	}
}

// IndexVenues bulk-indexes venues under itineraryID. Document ids are derived
// from the itinerary and venue name, so re-indexing replaces earlier copies.
func (v *VenueIndex) IndexVenues(ctx context.Context, itineraryID, city string, venues []models.Venue) (int, error) {
	if len(venues) == 0 {
		return 0, nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, venue := range venues {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": v.index,
				"_id":    venueDocID(itineraryID, venue.Name),
			},
		}
		if err := enc.Encode(meta); err != nil {
			return 0, apperrors.NewStoreFailedError("index", err)
		}
		if err := enc.Encode(VenueDocument{Venue: venue, ItineraryID: itineraryID, City: city}); err != nil {
			return 0, apperrors.NewStoreFailedError("index", err)
		}
	}

	res, err := v.client.Bulk(
		&body,
		v.client.Bulk.WithContext(ctx),
		v.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, apperrors.NewStoreFailedError("index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, apperrors.NewStoreFailedError("index", fmt.Errorf("bulk request: %s", res.Status()))
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, apperrors.NewStoreFailedError("index", fmt.Errorf("decode bulk response: %w", err))
	}

	indexed := 0
	for _, item := range parsed.Items {
		for _, op := range item {
			if op.Status >= 200 && op.Status < 300 {
				indexed++
			}
		}
	}
	if parsed.Errors {
		v.logger.Warn("some venues were not indexed", map[string]interface{}{
			"itineraryId": itineraryID,
			"indexed":     indexed,
			"total":       len(venues),
		})
	}
	return indexed, nil
}

// SearchVenues finds indexed venues in city matching query. An empty query
// returns the most relevant venues for the city.
func (v *VenueIndex) SearchVenues(ctx context.Context, city, query string, size int) ([]models.Venue, error) {
	if size <= 0 {
		size = 10
	}

	must := []interface{}{}
	if q := strings.TrimSpace(query); q != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"name^3", "description^2", "type", "highlights"},
				"type":   "best_fields",
			},
		})
	}
	filter := []interface{}{}
	if c := strings.TrimSpace(city); c != "" {
		filter = append(filter, map[string]interface{}{
			"match": map[string]interface{}{"city": c},
		})
	}
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"relevanceScore": "desc"},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewStoreFailedError("search", err)
	}

	res, err := v.client.Search(
		v.client.Search.WithContext(ctx),
		v.client.Search.WithIndex(v.index),
		v.client.Search.WithBody(bytes.NewReader(payload)),
		v.client.Search.WithSize(size),
	)
	if err != nil {
		return nil, apperrors.NewStoreFailedError("search", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, apperrors.NewStoreFailedError("search", fmt.Errorf("search request: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source VenueDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewStoreFailedError("search", fmt.Errorf("decode search response: %w", err))
	}

	seen := make(map[string]bool)
	venues := make([]models.Venue, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		key := strings.ToLower(strings.TrimSpace(hit.Source.Name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		venues = append(venues, hit.Source.Venue)
	}
	return venues, nil
}

func venueDocID(itineraryID, name string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	return itineraryID + ":" + slug
}
