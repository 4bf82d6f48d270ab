package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadShipped(t *testing.T) *ActivityRegistry {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "registry.json"))
	require.NoError(t, err)
	return reg
}

func TestShippedRegistry(t *testing.T) {
	reg := loadShipped(t)
	require.NoError(t, reg.Check())

	for _, task := range []string{"generate-itinerary", "refine-itinerary", "export-itinerary", "notify-itinerary"} {
		a, ok := reg.Find(task)
		require.True(t, ok, task)
		assert.True(t, a.Enabled, task)
		assert.NotEmpty(t, a.InputSchema, task)
	}
}

func TestValidate(t *testing.T) {
	reg := loadShipped(t)

	tests := []struct {
		name      string
		taskType  string
		variables string
		wantErr   error
	}{
		{"generate ok", "generate-itinerary", `{"userInput":"3 days in Goa for 4"}`, nil},
		{"generate extra process variables", "generate-itinerary", `{"userInput":"x","customerId":42}`, nil},
		{"generate empty input", "generate-itinerary", `{"userInput":""}`, ErrInvalidVariables},
		{"generate missing input", "generate-itinerary", `{}`, ErrInvalidVariables},
		{"refine ok", "refine-itinerary", `{"itineraryId":"i","prompt":"p","scope":{"type":"day","dayNumber":2}}`, nil},
		{"refine bad scope", "refine-itinerary", `{"itineraryId":"i","prompt":"p","scope":{"type":"week"}}`, ErrInvalidVariables},
		{"refine day zero", "refine-itinerary", `{"itineraryId":"i","prompt":"p","scope":{"type":"day","dayNumber":0}}`, ErrInvalidVariables},
		{"export by id", "export-itinerary", `{"itineraryId":"i","format":"ics"}`, nil},
		{"export inline", "export-itinerary", `{"itinerary":{"title":"t"}}`, nil},
		{"export neither", "export-itinerary", `{"format":"json"}`, ErrInvalidVariables},
		{"notify ok", "notify-itinerary", `{"itineraryId":"i","email":"a@example.com"}`, nil},
		{"not json", "notify-itinerary", `{`, ErrInvalidVariables},
		{"unknown task", "book-flights", `{}`, ErrUnknownTask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Validate(tt.taskType, tt.variables)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidate_NoSchemaAcceptsAnything(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{{ID: "a", TaskType: "a"}}}
	assert.NoError(t, reg.Validate("a", `{"anything":true}`))
}

func TestCheck(t *testing.T) {
	valid := Activity{ID: "a", DisplayName: "A", TaskType: "a", Category: "c"}

	tests := []struct {
		name       string
		activities []Activity
		wantErr    string
	}{
		{"empty", nil, "no activities"},
		{"missing id", []Activity{{DisplayName: "A", TaskType: "a", Category: "c"}}, "ID"},
		{"duplicate id", []Activity{valid, valid}, "duplicate activity ID"},
		{"duplicate task", []Activity{valid, {ID: "b", DisplayName: "B", TaskType: "a", Category: "c"}}, "duplicate task type"},
		{"missing category", []Activity{{ID: "a", DisplayName: "A", TaskType: "a"}}, "Category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&ActivityRegistry{Activities: tt.activities}).Check()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, os.IsNotExist(err))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}
