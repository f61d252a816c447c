// Package sync reconciles a freshly computed event set against the
// durable store.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"techcal/internal/model"
	"techcal/internal/store"
)

const dateLayout = "2006-01-02"

// Stats counts the writes of one sync pass.
type Stats struct {
	Created int
	Updated int
	Removed int
}

// Engine applies per-GUID reconciliation. It runs single-threaded,
// after the parallel fetch stage has fully completed.
type Engine struct {
	store store.EventStore
	loc   *time.Location
	now   func() time.Time
	log   *logrus.Entry
}

// NewEngine creates a sync Engine writing through the given store.
func NewEngine(st store.EventStore, loc *time.Location, log *logrus.Entry) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{store: st, loc: loc, now: time.Now, log: log}
}

// SyncGroup reconciles one group's fresh events against the store.
// Per GUID:
//
//   - New: insert with CreatedAt set now. CreatedAt is never touched
//     again on later syncs.
//   - Still present: update every field except CreatedAt; LastSeen
//     advances to today.
//   - Disappeared from the feed: if the event is scheduled for today it
//     is kept and its LastSeen refreshed — feeds have been observed to
//     drop today's events mid-day, and removing a live event during
//     its own occurrence is the worst user-visible failure this
//     pipeline can produce. Otherwise a one-cycle grace period applies
//     before the event is soft-deleted (status REMOVED, never a hard
//     delete here).
//
// An error mid-batch aborts this group's batch; the next run retries
// it. Other groups are unaffected.
func (e *Engine) SyncGroup(ctx context.Context, groupID string, fresh []model.ConsolidatedEvent) (Stats, error) {
	var stats Stats

	now := e.now().In(e.loc)
	today := now.Format(dateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)

	freshGUIDs := make(map[string]bool, len(fresh))
	for _, ev := range fresh {
		freshGUIDs[ev.GUID] = true
	}

	for _, ev := range fresh {
		stored, err := e.store.GetEvent(ctx, ev.GUID)
		if err != nil {
			return stats, fmt.Errorf("sync group %s: get %s: %w", groupID, ev.GUID, err)
		}

		ev.LastSeen = today
		ev.Status = model.StatusActive
		if stored == nil {
			ev.CreatedAt = now
			stats.Created++
		} else {
			ev.CreatedAt = stored.CreatedAt
			stats.Updated++
		}

		if err := e.store.PutEvent(ctx, ev); err != nil {
			return stats, fmt.Errorf("sync group %s: put %s: %w", groupID, ev.GUID, err)
		}
	}

	stored, err := e.store.QueryByGroup(ctx, groupID)
	if err != nil {
		return stats, fmt.Errorf("sync group %s: query stored: %w", groupID, err)
	}

	for _, old := range stored {
		if freshGUIDs[old.GUID] || old.Status != model.StatusActive {
			continue
		}

		switch {
		case old.Date == today:
			// Same-day stability: keep and refresh.
			old.LastSeen = today
			if err := e.store.PutEvent(ctx, old); err != nil {
				return stats, fmt.Errorf("sync group %s: refresh %s: %w", groupID, old.GUID, err)
			}
		case old.LastSeen >= yesterday:
			// Grace period: tolerate one missed poll cycle.
		default:
			if err := e.store.MarkRemoved(ctx, old.GUID); err != nil {
				return stats, fmt.Errorf("sync group %s: remove %s: %w", groupID, old.GUID, err)
			}
			e.log.WithFields(logrus.Fields{
				"group": groupID,
				"guid":  old.GUID,
				"date":  old.Date,
			}).Info("event disappeared from source, marked removed")
			stats.Removed++
		}
	}

	return stats, nil
}
