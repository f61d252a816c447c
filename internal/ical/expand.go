package ical

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"

	"techcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 1000

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location is the deployment timezone all occurrences are converted
	// into. If nil, time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd define the inclusive ingestion window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap against runaway rules. If
	// zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int

	Log *logrus.Entry
}

// Expand takes the parsed events of one feed and expands them into
// concrete occurrences within the configured window. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day semantics (normalized to local midnight)
//
// All resulting occurrences are in the configured timezone.
func Expand(events []ParsedEvent, cfg ExpandConfig) ([]model.RawEvent, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	order := make([]string, 0, len(events))

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]model.RawEvent, 0)
	for _, uid := range order {
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			if hitCap && cfg.Log != nil {
				cfg.Log.WithFields(logrus.Fields{
					"uid": uid,
					"cap": cfg.MaxOccurrencesPerEvent,
				}).Warn("truncated recurrence expansion at occurrence cap")
			}
			out = append(out, occ...)
		}
	}

	return out, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.RawEvent, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.RawEvent {
	start, end := normalizeTimes(ev, ev.Start, ev.End, cfg.Location)

	if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}

	// Apply any override whose RECURRENCE-ID matches this start.
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
		start, end = normalizeTimes(ev, ev.Start, ev.End, cfg.Location)
	}

	return []model.RawEvent{makeRawEvent(ev, start, end)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.RawEvent, bool) {
	out := make([]model.RawEvent, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		if cfg.Log != nil {
			cfg.Log.WithError(err).WithFields(logrus.Fields{
				"uid":   ev.UID,
				"rrule": ev.RawRRule,
			}).Debug("unparseable RRULE, keeping base occurrence only")
		}
		return expandSingleEvent(ev, overrides, cfg), false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)

	for _, ex := range ev.ExDates {
		// Align EXDATE location with the event's start for comparison.
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	for _, occStart := range occTimes {
		occEv := ev
		occEnd := occStart.Add(dur)

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occEv = o
			occStart = o.Start
			occEnd = o.End
		}

		start, end := normalizeTimes(occEv, occStart, occEnd, cfg.Location)
		out = append(out, makeRawEvent(occEv, start, end))
	}

	return out, hitCap
}

// findOverrideForStart finds an override event whose RECURRENCE-ID
// matches the given occurrence start with exact time equality.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// normalizeTimes converts an occurrence's start/end into the deployment
// timezone. All-day occurrences collapse to [midnight, next midnight)
// in that zone, keeping the calendar date the feed declared rather than
// shifting it through a zone conversion.
func normalizeTimes(ev ParsedEvent, start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	if ev.AllDay {
		midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		return midnight, midnight.Add(24 * time.Hour)
	}
	return start.In(loc), end.In(loc)
}

func makeRawEvent(ev ParsedEvent, start, end time.Time) model.RawEvent {
	return model.RawEvent{
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		URL:         ev.URL,
		Categories:  ev.Categories,
		Start:       start,
		End:         end,
		AllDay:      ev.AllDay,
		GroupID:     ev.GroupID,
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
