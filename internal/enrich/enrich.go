// Package enrich resolves event URLs and upgrades thin iCal fields with
// structured data scraped from the event's own page.
package enrich

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"techcal/internal/logging"
	"techcal/internal/model"
)

// maxPageBytes caps how much of a scraped page is read.
const maxPageBytes = 2 << 20

var linkRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// Enricher resolves event URLs and optionally scrapes pages for
// structured event metadata.
type Enricher struct {
	client *http.Client
	loc    *time.Location
	log    *logrus.Entry
}

// New creates an Enricher. timeout bounds each page fetch
// independently; loc is the zone scraped naive datetimes are read in.
func New(timeout time.Duration, loc *time.Location, log *logrus.Entry) *Enricher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	return &Enricher{
		client: &http.Client{Timeout: timeout},
		loc:    loc,
		log:    log,
	}
}

// Enrich resolves the event's URL and, when the group opts in, upgrades
// weak iCal fields from the page's structured data. The second return
// is false when the event has no resolvable URL at all; such events are
// dropped, since a link is a mandatory user-facing field.
func (e *Enricher) Enrich(ctx context.Context, raw model.RawEvent, group model.GroupConfig) (model.RawEvent, bool) {
	if group.URLOverride != nil && *group.URLOverride != "" {
		raw.URL = *group.URLOverride
	}

	fromFallback := false
	if raw.URL == "" {
		// Some sources tuck the registration link into the description
		// or even the location field.
		if link := firstLink(raw.Description, raw.Location); link != "" {
			raw.URL = link
		} else if group.FallbackURL != "" {
			raw.URL = group.FallbackURL
			fromFallback = true
		} else {
			return raw, false
		}
	}

	if group.ScanForMetadata && !fromFallback {
		e.scanPage(ctx, &raw)
	}

	return raw, true
}

func firstLink(texts ...string) string {
	for _, t := range texts {
		if m := linkRe.FindString(t); m != "" {
			return m
		}
	}
	return ""
}

// scanPage fetches the event page and applies any JSON-LD Event block
// found there. Every failure here degrades silently to the iCal fields.
func (e *Enricher) scanPage(ctx context.Context, raw *model.RawEvent) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw.URL, nil)
	if err != nil {
		return
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.WithError(err).WithField("url", logging.RedactURL(raw.URL)).Debug("metadata scrape failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.log.WithFields(logging.Fields{
			"url":    logging.RedactURL(raw.URL),
			"status": resp.StatusCode,
		}).Debug("metadata scrape skipped")
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return
	}

	ld, ok := extractEvent(body)
	if !ok {
		e.log.WithField("url", logging.RedactURL(raw.URL)).Debug("no structured event data on page")
		return
	}

	if ld.Name != "" {
		raw.Title = ld.Name
	}
	if ld.Description != "" {
		raw.Description = ld.Description
	}
	if ld.Location != "" {
		raw.Location = ld.Location
	}
	if t, perr := parseLDTime(ld.StartDate, e.loc); perr == nil {
		raw.Start = t.In(e.loc)
	}
	if t, perr := parseLDTime(ld.EndDate, e.loc); perr == nil {
		raw.End = t.In(e.loc)
	}
}

func parseLDTime(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, errEmptyTime
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	var lastErr error
	for i, layout := range layouts {
		var t time.Time
		var err error
		if i == 0 {
			t, err = time.Parse(layout, v)
		} else {
			t, err = time.ParseInLocation(layout, v, loc)
		}
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
