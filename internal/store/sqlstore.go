package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"techcal/internal/model"
)

// sqlStore implements EventStore on database/sql. Queries are written
// with ? placeholders and rebound to $n for Postgres.
type sqlStore struct {
	db       *sql.DB
	postgres bool
}

func (s *sqlStore) Close() error { return s.db.Close() }

// rebind converts ? placeholders to the $n form Postgres expects.
func (s *sqlStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const eventColumns = `guid, title, description, location, url, date, time,
	start_at, end_at, city, state, location_type, categories,
	group_id, group_name, group_website, also_published_by,
	created_at, last_seen, status`

func (s *sqlStore) GetEvent(ctx context.Context, guid string) (*model.ConsolidatedEvent, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+eventColumns+` FROM events WHERE guid = ?`), guid)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *sqlStore) PutEvent(ctx context.Context, ev model.ConsolidatedEvent) error {
	categories, err := json.Marshal(ev.Categories)
	if err != nil {
		return err
	}
	crossPosts, err := json.Marshal(ev.AlsoPublishedBy)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO events (` + eventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(guid) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		location = excluded.location,
		url = excluded.url,
		date = excluded.date,
		time = excluded.time,
		start_at = excluded.start_at,
		end_at = excluded.end_at,
		city = excluded.city,
		state = excluded.state,
		location_type = excluded.location_type,
		categories = excluded.categories,
		group_id = excluded.group_id,
		group_name = excluded.group_name,
		group_website = excluded.group_website,
		also_published_by = excluded.also_published_by,
		created_at = excluded.created_at,
		last_seen = excluded.last_seen,
		status = excluded.status`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		ev.GUID, ev.Title, ev.Description, ev.Location, ev.URL, ev.Date, ev.Time,
		ev.Start, ev.End, ev.City, ev.State, ev.LocationType, string(categories),
		ev.GroupID, ev.GroupName, ev.GroupWebsite, string(crossPosts),
		ev.CreatedAt, ev.LastSeen, ev.Status,
	)
	return err
}

func (s *sqlStore) MarkRemoved(ctx context.Context, guid string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE events SET status = ? WHERE guid = ?`),
		model.StatusRemoved, guid)
	return err
}

func (s *sqlStore) QueryRange(ctx context.Context, from, to string) ([]model.ConsolidatedEvent, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE status = ? AND date >= ? AND date <= ?
		 ORDER BY date, time, guid`,
		model.StatusActive, from, to)
}

func (s *sqlStore) QueryActive(ctx context.Context) ([]model.ConsolidatedEvent, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = ? ORDER BY date, time, guid`,
		model.StatusActive)
}

func (s *sqlStore) QueryByGroup(ctx context.Context, groupID string) ([]model.ConsolidatedEvent, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE group_id = ? ORDER BY date, time, guid`,
		groupID)
}

func (s *sqlStore) queryEvents(ctx context.Context, query string, args ...any) ([]model.ConsolidatedEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConsolidatedEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.ConsolidatedEvent, error) {
	var ev model.ConsolidatedEvent
	var categories, crossPosts string

	err := row.Scan(
		&ev.GUID, &ev.Title, &ev.Description, &ev.Location, &ev.URL, &ev.Date, &ev.Time,
		&ev.Start, &ev.End, &ev.City, &ev.State, &ev.LocationType, &categories,
		&ev.GroupID, &ev.GroupName, &ev.GroupWebsite, &crossPosts,
		&ev.CreatedAt, &ev.LastSeen, &ev.Status,
	)
	if err != nil {
		return ev, err
	}

	if err := json.Unmarshal([]byte(categories), &ev.Categories); err != nil {
		return ev, fmt.Errorf("decode categories for %s: %w", ev.GUID, err)
	}
	if err := json.Unmarshal([]byte(crossPosts), &ev.AlsoPublishedBy); err != nil {
		return ev, fmt.Errorf("decode also_published_by for %s: %w", ev.GUID, err)
	}
	return ev, nil
}

func (s *sqlStore) ListGroups(ctx context.Context) ([]model.GroupConfig, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, website, feed_url, fallback_url, active,
		       suppress_urls, suppress_guids, categories, url_override, scan_for_metadata
		FROM groups ORDER BY id`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GroupConfig
	for rows.Next() {
		var g model.GroupConfig
		var suppressURLs, suppressGUIDs, categories string
		var urlOverride sql.NullString

		if err := rows.Scan(&g.ID, &g.Name, &g.Website, &g.FeedURL, &g.FallbackURL,
			&g.Active, &suppressURLs, &suppressGUIDs, &categories,
			&urlOverride, &g.ScanForMetadata); err != nil {
			return nil, err
		}

		lists := []struct {
			raw string
			dst *[]string
		}{
			{suppressURLs, &g.SuppressURLs},
			{suppressGUIDs, &g.SuppressGUIDs},
			{categories, &g.Categories},
		}
		for _, l := range lists {
			if err := json.Unmarshal([]byte(l.raw), l.dst); err != nil {
				return nil, fmt.Errorf("decode group %s lists: %w", g.ID, err)
			}
		}
		if urlOverride.Valid {
			g.URLOverride = &urlOverride.String
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *sqlStore) GetOverride(ctx context.Context, guid string) (*model.Override, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT guid, title, url, location, time, categories, hidden, duplicate_of
		FROM overrides WHERE guid = ?`), guid)

	var ov model.Override
	var title, urlField, location, timeField, categories, duplicateOf sql.NullString
	var hidden sql.NullBool

	err := row.Scan(&ov.GUID, &title, &urlField, &location, &timeField,
		&categories, &hidden, &duplicateOf)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if title.Valid {
		ov.Title = &title.String
	}
	if urlField.Valid {
		ov.URL = &urlField.String
	}
	if location.Valid {
		ov.Location = &location.String
	}
	if timeField.Valid {
		ov.Time = &timeField.String
	}
	if categories.Valid {
		if err := json.Unmarshal([]byte(categories.String), &ov.Categories); err != nil {
			return nil, fmt.Errorf("decode override categories for %s: %w", guid, err)
		}
	}
	if hidden.Valid {
		ov.Hidden = &hidden.Bool
	}
	if duplicateOf.Valid {
		ov.DuplicateOf = &duplicateOf.String
	}
	return &ov, nil
}

func (s *sqlStore) ListCategories(ctx context.Context) (map[string]model.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug, name FROM categories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.Category)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Slug, &c.Name); err != nil {
			return nil, err
		}
		out[c.Slug] = c
	}
	return out, rows.Err()
}

func (s *sqlStore) ListManualEvents(ctx context.Context) ([]model.ManualEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, location, url, date, time, group_name, submitted_at
		FROM manual_events ORDER BY date, time, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ManualEvent
	for rows.Next() {
		var m model.ManualEvent
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Location, &m.URL,
			&m.Date, &m.Time, &m.GroupName, &m.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqlStore) AddManualEvent(ctx context.Context, ev model.ManualEvent) (model.ManualEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.SubmittedAt.IsZero() {
		ev.SubmittedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO manual_events (id, title, description, location, url, date, time, group_name, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ev.ID, ev.Title, ev.Description, ev.Location, ev.URL,
		ev.Date, ev.Time, ev.GroupName, ev.SubmittedAt)
	if err != nil {
		return model.ManualEvent{}, err
	}
	return ev, nil
}
