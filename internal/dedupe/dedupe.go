// Package dedupe collapses events that describe the same real-world
// occurrence posted by multiple groups.
package dedupe

import (
	"strings"

	"techcal/internal/model"
)

// Dedupe runs two passes over the enriched set and returns consolidated
// events in input order.
//
// Pass 1 (implicit): events with the same normalized (title, date,
// time) are one occurrence. The first one encountered wins and absorbs
// the rest into its AlsoPublishedBy list; input order is therefore a
// documented convention, not an accident — callers feed group-sourced
// events before manual submissions so feeds win ties.
//
// Pass 2 (explicit): events a moderator marked duplicate_of=<guid> are
// rolled into the named parent. If the parent is not in the current
// batch the duplicate is kept standalone rather than silently dropped.
func Dedupe(events []model.EnrichedEvent) []model.ConsolidatedEvent {
	type slot struct {
		ev          model.ConsolidatedEvent
		duplicateOf string
		alive       bool
	}
	slots := make([]*slot, 0, len(events))
	byKey := make(map[string]*slot, len(events))
	byGUID := make(map[string]*slot, len(events))

	for _, ev := range events {
		key := Key(ev.Title, ev.Date, ev.Time)

		if winner, ok := byKey[key]; ok && winner.alive {
			winner.ev.AlsoPublishedBy = append(winner.ev.AlsoPublishedBy, crossPost(ev))
			continue
		}

		s := &slot{ev: consolidate(ev), duplicateOf: ev.DuplicateOf, alive: true}
		slots = append(slots, s)
		byKey[key] = s
		byGUID[ev.GUID] = s
	}

	// Explicit duplicate links, resolved after the whole batch is known.
	for _, s := range slots {
		if s.duplicateOf == "" {
			continue
		}
		parent, ok := byGUID[s.duplicateOf]
		if !ok || !parent.alive || parent == s {
			// Parent missing from this batch: keep the event standalone.
			continue
		}
		parent.ev.AlsoPublishedBy = append(parent.ev.AlsoPublishedBy, model.CrossPost{
			Group:        s.ev.GroupName,
			GroupWebsite: s.ev.GroupWebsite,
			URL:          s.ev.URL,
		})
		s.alive = false
	}

	out := make([]model.ConsolidatedEvent, 0, len(slots))
	for _, s := range slots {
		if s.alive {
			out = append(out, s.ev)
		}
	}
	return out
}

// Key normalizes the fields two cross-posted listings of the same
// occurrence share. Callers comparing fresh events against stored
// records must use this same normalization.
func Key(title, date, timeStr string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + date + "|" + timeStr
}

func crossPost(ev model.EnrichedEvent) model.CrossPost {
	return model.CrossPost{
		Group:        ev.GroupName,
		GroupWebsite: ev.GroupWebsite,
		URL:          ev.URL,
	}
}

func consolidate(ev model.EnrichedEvent) model.ConsolidatedEvent {
	return model.ConsolidatedEvent{
		GUID:         ev.GUID,
		Title:        ev.Title,
		Description:  ev.Description,
		Location:     ev.Location,
		URL:          ev.URL,
		Date:         ev.Date,
		Time:         ev.Time,
		Start:        ev.Start,
		End:          ev.End,
		City:         ev.City,
		State:        ev.State,
		LocationType: ev.LocationType,
		Categories:   ev.Categories,
		GroupID:      ev.GroupID,
		GroupName:    ev.GroupName,
		GroupWebsite: ev.GroupWebsite,
		Status:       model.StatusActive,
	}
}
