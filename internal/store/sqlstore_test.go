package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techcal/internal/model"
)

func TestRebind(t *testing.T) {
	lite := &sqlStore{}
	pg := &sqlStore{postgres: true}

	q := "SELECT x FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, q, lite.rebind(q))
	assert.Equal(t, "SELECT x FROM t WHERE a = $1 AND b = $2", pg.rebind(q))
}

func testEvent(guid string) model.ConsolidatedEvent {
	start := time.Date(2026, time.September, 1, 18, 30, 0, 0, time.UTC)
	return model.ConsolidatedEvent{
		GUID:         guid,
		Title:        "Go Meetup",
		Description:  "Talks and pizza",
		Location:     "Baltimore, MD",
		URL:          "https://example.com/e/1",
		Date:         "2026-09-01",
		Time:         "18:30",
		Start:        start,
		End:          start.Add(2 * time.Hour),
		City:         "Baltimore",
		State:        "MD",
		LocationType: model.LocationInPerson,
		Categories:   []string{"golang"},
		GroupID:      "balt-go",
		GroupName:    "Baltimore Go",
		GroupWebsite: "https://baltgo.example.com",
		AlsoPublishedBy: []model.CrossPost{
			{Group: "Other", GroupWebsite: "https://other.example.com", URL: "https://other.example.com/e"},
		},
		CreatedAt: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		LastSeen:  "2026-08-28",
		Status:    model.StatusActive,
	}
}

func openTestStore(t *testing.T) EventStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteEventRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Absent GUID is (nil, nil), not an error.
	got, err := s.GetEvent(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := testEvent("g1")
	require.NoError(t, s.PutEvent(ctx, want))

	got, err = s.GetEvent(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Categories, got.Categories)
	assert.Equal(t, want.AlsoPublishedBy, got.AlsoPublishedBy)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, model.StatusActive, got.Status)
}

func TestSQLitePutEventUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev := testEvent("g1")
	require.NoError(t, s.PutEvent(ctx, ev))

	ev.Title = "Go Meetup (rescheduled)"
	ev.LastSeen = "2026-08-29"
	require.NoError(t, s.PutEvent(ctx, ev))

	got, err := s.GetEvent(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Go Meetup (rescheduled)", got.Title)
	assert.Equal(t, "2026-08-29", got.LastSeen)

	active, err := s.QueryActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSQLiteMarkRemoved(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEvent(ctx, testEvent("g1")))
	require.NoError(t, s.MarkRemoved(ctx, "g1"))

	// Soft delete: the record survives with REMOVED status.
	got, err := s.GetEvent(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusRemoved, got.Status)

	active, err := s.QueryActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSQLiteQueryRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	early := testEvent("g1")
	late := testEvent("g2")
	late.Date = "2026-11-20"
	require.NoError(t, s.PutEvent(ctx, early))
	require.NoError(t, s.PutEvent(ctx, late))

	got, err := s.QueryRange(ctx, "2026-09-01", "2026-09-30")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].GUID)
}

func TestSQLiteManualEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	added, err := s.AddManualEvent(ctx, model.ManualEvent{
		Title: "One-off Workshop",
		URL:   "https://example.com/workshop",
		Date:  "2026-09-15",
		Time:  "10:00",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID, "an ID is assigned on insert")
	assert.False(t, added.SubmittedAt.IsZero())

	list, err := s.ListManualEvents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "One-off Workshop", list[0].Title)
}

func TestSQLiteOverrideAbsent(t *testing.T) {
	s := openTestStore(t)
	ov, err := s.GetOverride(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, ov)
}

func TestMarkRemovedSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := &sqlStore{db: db}
	mock.ExpectExec("UPDATE events SET status").
		WithArgs(model.StatusRemoved, "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkRemoved(context.Background(), "g1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOverrideSparseFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := &sqlStore{db: db}
	rows := sqlmock.NewRows([]string{"guid", "title", "url", "location", "time", "categories", "hidden", "duplicate_of"}).
		AddRow("g1", "Fixed Title", nil, nil, nil, `["golang"]`, true, nil)
	mock.ExpectQuery("SELECT guid, title, url, location, time, categories, hidden, duplicate_of").
		WithArgs("g1").
		WillReturnRows(rows)

	ov, err := s.GetOverride(context.Background(), "g1")
	require.NoError(t, err)
	require.NotNil(t, ov)
	require.NotNil(t, ov.Title)
	assert.Equal(t, "Fixed Title", *ov.Title)
	assert.Nil(t, ov.URL)
	assert.Equal(t, []string{"golang"}, ov.Categories)
	require.NotNil(t, ov.Hidden)
	assert.True(t, *ov.Hidden)
	assert.Nil(t, ov.DuplicateOf)
}
