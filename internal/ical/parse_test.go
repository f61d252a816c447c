package ical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const singleEventICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:ev1@example.com\r\n" +
	"SUMMARY:Go Meetup\r\n" +
	"DESCRIPTION:Talks and pizza\r\n" +
	"LOCATION:Baltimore MD\r\n" +
	"URL:https://example.com/e/1\r\n" +
	"CATEGORIES:golang,databases\r\n" +
	"DTSTART:20260901T180000Z\r\n" +
	"DTEND:20260901T200000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseSingleEvent(t *testing.T) {
	events, err := Parse("balt-go", []byte(singleEventICS), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "balt-go", ev.GroupID)
	assert.Equal(t, "ev1@example.com", ev.UID)
	assert.Equal(t, "Go Meetup", ev.Summary)
	assert.Equal(t, "Talks and pizza", ev.Description)
	assert.Equal(t, "Baltimore MD", ev.Location)
	assert.Equal(t, "https://example.com/e/1", ev.URL)
	assert.Equal(t, []string{"golang", "databases"}, ev.Categories)
	assert.False(t, ev.AllDay)
	assert.Empty(t, ev.RawRRule)
	assert.Equal(t, 2026, ev.Start.Year())
}

func TestParseAllDayEvent(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:allday@example.com\r\n" +
		"SUMMARY:Hack Day\r\n" +
		"DTSTART;VALUE=DATE:20260905\r\n" +
		"DTEND;VALUE=DATE:20260906\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := Parse("g", []byte(body), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
}

func TestParseRecurringWithExdate(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:rec@example.com\r\n" +
		"SUMMARY:Weekly Standup\r\n" +
		"DTSTART:20260901T180000Z\r\n" +
		"DTEND:20260901T190000Z\r\n" +
		"RRULE:FREQ=WEEKLY;COUNT=8\r\n" +
		"EXDATE:20260908T180000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := Parse("g", []byte(body), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "FREQ=WEEKLY;COUNT=8", ev.RawRRule)
	require.Len(t, ev.ExDates, 1)
	assert.Equal(t, 8, ev.ExDates[0].Day())
}

func TestParseSkipsEventWithoutUID(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"SUMMARY:No identity\r\n" +
		"DTSTART:20260901T180000Z\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:ok@example.com\r\n" +
		"SUMMARY:Fine\r\n" +
		"DTSTART:20260901T180000Z\r\n" +
		"DTEND:20260901T190000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := Parse("g", []byte(body), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok@example.com", events[0].UID)
}

func TestParseEmptyBody(t *testing.T) {
	_, err := Parse("g", nil, nil)
	assert.Error(t, err)
}
