// Package pipeline orchestrates one ingestion run: fetch and expand
// every active group's feed in parallel, enrich and classify events,
// merge manual submissions, dedupe across sources, and reconcile the
// result against the durable store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"techcal/internal/category"
	"techcal/internal/config"
	"techcal/internal/dedupe"
	"techcal/internal/feed"
	"techcal/internal/ical"
	"techcal/internal/identity"
	"techcal/internal/location"
	"techcal/internal/logging"
	"techcal/internal/metrics"
	"techcal/internal/model"
	"techcal/internal/override"
	"techcal/internal/store"
	"techcal/internal/sync"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ErrRunInProgress is returned when a run is requested while another is
// still executing. Overlapping runs racing the same GUIDs could apply
// stale CreatedAt reads, so the caller skips instead of queueing.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// feedFetcher is the slice of feed.Client the pipeline needs.
type feedFetcher interface {
	Fetch(ctx context.Context, groupID, url string) (feed.Result, error)
}

// metadataEnricher is the slice of enrich.Enricher the pipeline needs.
type metadataEnricher interface {
	Enrich(ctx context.Context, raw model.RawEvent, group model.GroupConfig) (model.RawEvent, bool)
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	cfg      *config.Config
	loc      *time.Location
	store    store.EventStore
	fetcher  feedFetcher
	enricher metadataEnricher
	engine   *sync.Engine
	metrics  *metrics.Metrics
	log      *logrus.Entry

	now func() time.Time

	runMu gosync.Mutex

	lastMu      gosync.RWMutex
	lastSummary *model.RunSummary
}

// New constructs a Pipeline. metrics may be nil.
func New(cfg *config.Config, loc *time.Location, st store.EventStore,
	fetcher feedFetcher, enricher metadataEnricher,
	engine *sync.Engine, m *metrics.Metrics, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		loc:      loc,
		store:    st,
		fetcher:  fetcher,
		enricher: enricher,
		engine:   engine,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// LastSummary returns the summary of the most recent completed run, or
// nil when no run has completed yet.
func (p *Pipeline) LastSummary() *model.RunSummary {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.lastSummary
}

// groupResult is the output of one group's parallel stage.
type groupResult struct {
	events  []model.EnrichedEvent
	changed bool
	dropped int
	err     error
}

// Run executes one full pipeline pass. Only configuration-store
// failures return an error; everything group-scoped is absorbed into
// the summary so one bad feed never takes down the run.
func (p *Pipeline) Run(ctx context.Context) (*model.RunSummary, error) {
	if !p.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.runMu.Unlock()

	summary := &model.RunSummary{StartedAt: p.now()}

	groups, err := p.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	known, err := p.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	active := make([]model.GroupConfig, 0, len(groups))
	for _, g := range groups {
		if g.Active {
			active = append(active, g)
		}
	}

	// Parallel per-group stage. Results land in group order so the
	// dedup tie-break stays deterministic regardless of which fetch
	// finishes first.
	results := make([]groupResult, len(active))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.Parallelism)
	for i, group := range active {
		eg.Go(func() error {
			results[i] = p.processGroup(egCtx, group, known)
			return nil
		})
	}
	// Workers never return errors; failures land in their result slot.
	_ = eg.Wait()

	// Barrier passed: merge in group order, then manual submissions,
	// so feed-sourced events win dedup ties over manual ones.
	merged := make([]model.EnrichedEvent, 0)
	changedGroups := make(map[string]bool, len(active))
	for i, group := range active {
		res := results[i]
		summary.EventsDropped += res.dropped

		switch {
		case res.err != nil:
			summary.GroupsSkipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("group %s: %v", group.ID, res.err))
			p.observeFetch("error")
			p.log.WithError(res.err).WithField("group", group.ID).Warn("group skipped this run")
		case !res.changed:
			summary.GroupsUnchanged++
			p.observeFetch("unchanged")
		default:
			summary.GroupsProcessed++
			p.observeFetch("changed")
			changedGroups[group.ID] = true
			merged = append(merged, res.events...)
		}
	}

	manual, err := p.store.ListManualEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manual events: %w", err)
	}
	for _, m := range manual {
		ev, ok := p.enrichManual(ctx, m, known)
		if !ok {
			summary.EventsDropped++
			continue
		}
		merged = append(merged, ev)
	}

	consolidated, err := p.absorbStoredDuplicates(ctx, dedupe.Dedupe(merged), changedGroups)
	if err != nil {
		return nil, fmt.Errorf("query active events: %w", err)
	}

	batches := make(map[string][]model.ConsolidatedEvent)
	for _, ev := range consolidated {
		batches[ev.GroupID] = append(batches[ev.GroupID], ev)
	}

	// Sync one batch per changed group, in configured group order. A
	// changed group whose fresh set came out empty still reconciles, so
	// its disappeared events age out; unchanged and skipped groups keep
	// their stored state untouched this run. The manual batch (empty
	// group ID) reconciles every run so stale manual records age out.
	syncOrder := make([]string, 0, len(active)+1)
	for _, g := range active {
		if changedGroups[g.ID] {
			syncOrder = append(syncOrder, g.ID)
		}
	}
	syncOrder = append(syncOrder, "")

	for _, gid := range syncOrder {
		stats, err := p.engine.SyncGroup(ctx, gid, batches[gid])
		summary.EventsCreated += stats.Created
		summary.EventsUpdated += stats.Updated
		summary.EventsRemoved += stats.Removed
		if err != nil {
			// This group's batch retries next run; others are unaffected.
			summary.Errors = append(summary.Errors, fmt.Sprintf("sync %q: %v", gid, err))
			p.log.WithError(err).WithField("group", gid).Error("sync batch failed")
		}
	}

	summary.Duration = p.now().Sub(summary.StartedAt)
	if p.metrics != nil {
		p.metrics.ObserveRun(summary)
	}

	p.lastMu.Lock()
	p.lastSummary = summary
	p.lastMu.Unlock()

	p.log.WithFields(logging.Fields{
		"groups_processed": summary.GroupsProcessed,
		"groups_unchanged": summary.GroupsUnchanged,
		"groups_skipped":   summary.GroupsSkipped,
		"created":          summary.EventsCreated,
		"updated":          summary.EventsUpdated,
		"removed":          summary.EventsRemoved,
		"dropped":          summary.EventsDropped,
		"errors":           len(summary.Errors),
		"duration":         summary.Duration.String(),
	}).Info("pipeline run complete")

	return summary, nil
}

// absorbStoredDuplicates drops fresh events that describe the same
// occurrence as an active stored event belonging to a group that is not
// reconciled this run (unchanged or skipped). That stored copy remains
// authoritative until its own feed changes; creating the fresh copy
// would list the occurrence twice. Records of groups being reconciled
// are excluded, otherwise every update would match its own prior state.
func (p *Pipeline) absorbStoredDuplicates(ctx context.Context, consolidated []model.ConsolidatedEvent, changed map[string]bool) ([]model.ConsolidatedEvent, error) {
	stored, err := p.store.QueryActive(ctx)
	if err != nil {
		return nil, err
	}

	authoritative := make(map[string]bool)
	for _, ev := range stored {
		if ev.GroupID != "" && !changed[ev.GroupID] {
			authoritative[dedupe.Key(ev.Title, ev.Date, ev.Time)] = true
		}
	}
	if len(authoritative) == 0 {
		return consolidated, nil
	}

	out := consolidated[:0]
	for _, ev := range consolidated {
		if authoritative[dedupe.Key(ev.Title, ev.Date, ev.Time)] {
			p.log.WithFields(logging.Fields{
				"guid":  ev.GUID,
				"group": ev.GroupID,
			}).Debug("fresh event matches a stored cross-post, absorbed")
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (p *Pipeline) observeFetch(result string) {
	if p.metrics != nil {
		p.metrics.GroupFetches.WithLabelValues(result).Inc()
	}
}

// processGroup runs the parallel stage for one group: fetch, parse,
// expand, enrich, classify, hash, override, categorize.
func (p *Pipeline) processGroup(ctx context.Context, group model.GroupConfig, known map[string]model.Category) groupResult {
	res, err := p.fetcher.Fetch(ctx, group.ID, group.FeedURL)
	if err != nil {
		// With or without a cached body, an errored fetch means "no
		// change this run" for this group only.
		return groupResult{err: err}
	}
	if !res.Changed {
		return groupResult{changed: false}
	}

	parsed, err := ical.Parse(group.ID, res.Body, p.log)
	if err != nil {
		return groupResult{err: fmt.Errorf("parse feed: %w", err)}
	}

	now := p.now().In(p.loc)
	raws, err := ical.Expand(parsed, ical.ExpandConfig{
		Location:   p.loc,
		RangeStart: now,
		RangeEnd:   now.AddDate(0, 0, p.cfg.WindowDays),
		Log:        p.log,
	})
	if err != nil {
		return groupResult{err: fmt.Errorf("expand feed: %w", err)}
	}

	out := groupResult{changed: true, events: make([]model.EnrichedEvent, 0, len(raws))}
	for _, raw := range raws {
		ev, ok := p.enrichOne(ctx, raw, group, known)
		if !ok {
			out.dropped++
			continue
		}
		out.events = append(out.events, ev)
	}
	return out
}

// enrichOne lifts one raw occurrence into an EnrichedEvent, or reports
// false when the event must be dropped (no URL, filtered state,
// suppressed, or hidden by override).
func (p *Pipeline) enrichOne(ctx context.Context, raw model.RawEvent, group model.GroupConfig, known map[string]model.Category) (model.EnrichedEvent, bool) {
	raw, ok := p.enricher.Enrich(ctx, raw, group)
	if !ok {
		p.log.WithFields(logging.Fields{
			"group": group.ID,
			"title": raw.Title,
		}).Debug("event dropped: no resolvable URL")
		return model.EnrichedEvent{}, false
	}

	cls := location.Classify(raw.Location)
	if !cls.Virtual && !location.Allowed(cls.State, p.cfg.OnlyStates) {
		return model.EnrichedEvent{}, false
	}

	start := raw.Start.In(p.loc)
	date := start.Format(dateLayout)
	timeStr := start.Format(timeLayout)
	guid := identity.Hash(date, timeStr, raw.Title, raw.URL)

	for _, u := range group.SuppressURLs {
		if u == raw.URL {
			return model.EnrichedEvent{}, false
		}
	}
	for _, g := range group.SuppressGUIDs {
		if g == guid {
			return model.EnrichedEvent{}, false
		}
	}

	locType := model.LocationInPerson
	if cls.Virtual {
		locType = model.LocationVirtual
	}

	ev := model.EnrichedEvent{
		GUID:         guid,
		Title:        raw.Title,
		Description:  raw.Description,
		Location:     raw.Location,
		URL:          raw.URL,
		Date:         date,
		Time:         timeStr,
		Start:        start,
		End:          raw.End.In(p.loc),
		City:         cls.City,
		State:        cls.State,
		LocationType: locType,
		GroupID:      group.ID,
		GroupName:    group.Name,
		GroupWebsite: group.Website,
	}

	ov, err := p.store.GetOverride(ctx, guid)
	if err != nil {
		// Overrides are corrections; losing one for a run beats losing
		// the event.
		p.log.WithError(err).WithField("guid", guid).Warn("override lookup failed")
	}
	ev = override.Apply(ev, ov)
	if ev.Hidden {
		return model.EnrichedEvent{}, false
	}

	ev.Categories = category.Resolve(raw.Categories, group.Categories, known)
	if ov != nil && ov.Categories != nil {
		ev.Categories = category.Resolve(ov.Categories, nil, known)
	}

	return ev, true
}

// enrichManual lifts a manual submission into an EnrichedEvent through
// the same identity, override and category steps as feed events.
func (p *Pipeline) enrichManual(ctx context.Context, m model.ManualEvent, known map[string]model.Category) (model.EnrichedEvent, bool) {
	if m.URL == "" {
		return model.EnrichedEvent{}, false
	}

	start, err := time.ParseInLocation(dateLayout+" "+timeLayout, m.Date+" "+m.Time, p.loc)
	if err != nil {
		// Date-only submissions land on local midnight.
		start, err = time.ParseInLocation(dateLayout, m.Date, p.loc)
		if err != nil {
			p.log.WithField("id", m.ID).Warn("manual event has unparseable date, dropped")
			return model.EnrichedEvent{}, false
		}
	}

	// Ingestion window applies to manual events too.
	now := p.now().In(p.loc)
	if start.Before(now.AddDate(0, 0, -1)) || start.After(now.AddDate(0, 0, p.cfg.WindowDays)) {
		return model.EnrichedEvent{}, false
	}

	cls := location.Classify(m.Location)
	if !cls.Virtual && !location.Allowed(cls.State, p.cfg.OnlyStates) {
		return model.EnrichedEvent{}, false
	}

	date := start.Format(dateLayout)
	timeStr := start.Format(timeLayout)
	guid := identity.Hash(date, timeStr, m.Title, m.URL)

	locType := model.LocationInPerson
	if cls.Virtual {
		locType = model.LocationVirtual
	}

	ev := model.EnrichedEvent{
		GUID:         guid,
		Title:        m.Title,
		Description:  m.Description,
		Location:     m.Location,
		URL:          m.URL,
		Date:         date,
		Time:         timeStr,
		Start:        start,
		End:          start.Add(2 * time.Hour),
		City:         cls.City,
		State:        cls.State,
		LocationType: locType,
		GroupName:    m.GroupName,
	}

	ov, err := p.store.GetOverride(ctx, guid)
	if err != nil {
		p.log.WithError(err).WithField("guid", guid).Warn("override lookup failed")
	}
	ev = override.Apply(ev, ov)
	if ev.Hidden {
		return model.EnrichedEvent{}, false
	}
	if ov != nil && ov.Categories != nil {
		ev.Categories = category.Resolve(ov.Categories, nil, known)
	}

	return ev, true
}
