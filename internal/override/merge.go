// Package override applies moderator corrections over fetched event
// fields.
package override

import "techcal/internal/model"

// Apply merges a moderator override into an enriched event,
// field-by-field. Only non-nil override fields replace event fields. A
// nil override is the common case and returns the event untouched. The
// GUID is never changed here: it identifies what the feeds published,
// which is exactly what the override is keyed on.
func Apply(ev model.EnrichedEvent, ov *model.Override) model.EnrichedEvent {
	if ov == nil {
		return ev
	}

	if ov.Title != nil {
		ev.Title = *ov.Title
	}
	if ov.URL != nil {
		ev.URL = *ov.URL
	}
	if ov.Location != nil {
		ev.Location = *ov.Location
	}
	if ov.Time != nil {
		ev.Time = *ov.Time
	}
	if ov.Categories != nil {
		ev.Categories = ov.Categories
	}
	if ov.Hidden != nil {
		ev.Hidden = *ov.Hidden
	}
	if ov.DuplicateOf != nil {
		ev.DuplicateOf = *ov.DuplicateOf
	}
	return ev
}
