package store

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/models"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc) *VenueIndex {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewVenueIndex(client, "", logger.NewTestLogger(t))
}

// ==========================
// IndexVenues
// ==========================

func TestVenueIndex_IndexVenues(t *testing.T) {
	var lines []map[string]interface{}
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("refresh"))
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var line map[string]interface{}
			require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
			lines = append(lines, line)
		}
		w.Write([]byte(`{"took":3,"errors":false,"items":[{"index":{"status":201}},{"index":{"status":200}}]}`))
	})

	n, err := idx.IndexVenues(context.Background(), "itin-1", "Goa", []models.Venue{
		{Name: "Britto's", Type: "restaurant"},
		{Name: "Baga Beach Shacks", Type: "restaurant"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, lines, 4)
	meta := lines[0]["index"].(map[string]interface{})
	assert.Equal(t, DefaultVenueIndex, meta["_index"])
	assert.Equal(t, "itin-1:britto's", meta["_id"])
	assert.Equal(t, "Britto's", lines[1]["name"])
	assert.Equal(t, "itin-1", lines[1]["itineraryId"])
	assert.Equal(t, "Goa", lines[1]["city"])
	assert.Equal(t, "itin-1:baga-beach-shacks", lines[2]["index"].(map[string]interface{})["_id"])
}

func TestVenueIndex_IndexVenues_PartialFailure(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":true,"items":[{"index":{"status":201}},{"index":{"status":400}}]}`))
	})

	n, err := idx.IndexVenues(context.Background(), "itin-1", "Goa", []models.Venue{{Name: "A"}, {Name: "B"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVenueIndex_IndexVenues_Empty(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	n, err := idx.IndexVenues(context.Background(), "itin-1", "Goa", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVenueIndex_IndexVenues_ServerError(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad"}`))
	})

	_, err := idx.IndexVenues(context.Background(), "itin-1", "Goa", []models.Venue{{Name: "A"}})
	assert.Equal(t, apperrors.ErrCodeStoreFailed, apperrors.CodeOf(err))
}

// ==========================
// SearchVenues
// ==========================

func TestVenueIndex_SearchVenues(t *testing.T) {
	var body map[string]interface{}
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+DefaultVenueIndex+"/_search", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"hits":{"total":{"value":3},"hits":[
			{"_source":{"name":"Britto's","type":"restaurant","city":"Goa","itineraryId":"itin-1","cost":"INR 1500"}},
			{"_source":{"name":"britto's","type":"restaurant","city":"Goa","itineraryId":"itin-2"}},
			{"_source":{"name":"Fort Aguada","type":"attraction","city":"Goa","itineraryId":"itin-2","highlights":"sunset views"}}
		]}}`))
	})

	venues, err := idx.SearchVenues(context.Background(), "Goa", "seafood", 5)
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.Equal(t, "Britto's", venues[0].Name)
	assert.Equal(t, "INR 1500", venues[0].Cost.String())
	assert.Equal(t, "Fort Aguada", venues[1].Name)
	assert.Equal(t, models.FlexList{"sunset views"}, venues[1].Highlights)

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, boolQuery["must"], 1)
	assert.Len(t, boolQuery["filter"], 1)
}

func TestVenueIndex_SearchVenues_MissingIndex(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
	})

	venues, err := idx.SearchVenues(context.Background(), "Goa", "", 0)
	require.NoError(t, err)
	assert.Empty(t, venues)
}
