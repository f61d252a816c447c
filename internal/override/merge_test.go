package override

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"techcal/internal/model"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestApplyNilOverride(t *testing.T) {
	ev := model.EnrichedEvent{GUID: "g1", Title: "Original"}
	got := Apply(ev, nil)
	assert.Equal(t, ev, got)
}

func TestApplySparseFields(t *testing.T) {
	ev := model.EnrichedEvent{
		GUID:       "g1",
		Title:      "Orignal Titel",
		URL:        "https://example.com/a",
		Location:   "TBD",
		Time:       "18:00",
		Categories: []string{"golang"},
	}

	got := Apply(ev, &model.Override{
		GUID:  "g1",
		Title: strPtr("Original Title"),
		Time:  strPtr("18:30"),
	})

	assert.Equal(t, "Original Title", got.Title)
	assert.Equal(t, "18:30", got.Time)
	// Untouched fields survive.
	assert.Equal(t, "https://example.com/a", got.URL)
	assert.Equal(t, "TBD", got.Location)
	assert.Equal(t, []string{"golang"}, got.Categories)
	assert.Equal(t, "g1", got.GUID)
}

func TestApplyHiddenAndDuplicate(t *testing.T) {
	ev := model.EnrichedEvent{GUID: "g1"}

	got := Apply(ev, &model.Override{
		Hidden:      boolPtr(true),
		DuplicateOf: strPtr("g0"),
	})

	assert.True(t, got.Hidden)
	assert.Equal(t, "g0", got.DuplicateOf)
}

func TestApplyCategoriesReplaceWholesale(t *testing.T) {
	ev := model.EnrichedEvent{Categories: []string{"golang", "security"}}
	got := Apply(ev, &model.Override{Categories: []string{"databases"}})
	assert.Equal(t, []string{"databases"}, got.Categories)
}
