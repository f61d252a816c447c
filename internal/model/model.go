package model

import "time"

// Event status values as stored.
const (
	StatusActive  = "ACTIVE"
	StatusRemoved = "REMOVED"
)

// Location type values.
const (
	LocationVirtual  = "virtual"
	LocationInPerson = "in_person"
)

// GroupConfig describes a single calendar-publishing group. It is owned
// by the admin/config side; the pipeline only reads it.
type GroupConfig struct {
	// ID is a stable slug identifying the group (e.g. "baltimore-golang").
	ID string `yaml:"id" json:"id"`
	// Name is the human-readable group name.
	Name string `yaml:"name" json:"name"`
	// Website is the group's home page.
	Website string `yaml:"website" json:"website"`
	// FeedURL is the iCal subscription endpoint.
	FeedURL string `yaml:"feed_url" json:"feed_url"`
	// FallbackURL is used for events whose feed entry carries no link.
	FallbackURL string `yaml:"fallback_url" json:"fallback_url"`
	// Active groups are fetched; inactive ones are ignored entirely.
	Active bool `yaml:"active" json:"active"`
	// SuppressURLs lists event URLs that must never be ingested.
	SuppressURLs []string `yaml:"suppress_urls" json:"suppress_urls"`
	// SuppressGUIDs lists event GUIDs that must never be ingested.
	SuppressGUIDs []string `yaml:"suppress_guids" json:"suppress_guids"`
	// Categories are inherited by events that declare none of their own.
	Categories []string `yaml:"categories" json:"categories"`
	// URLOverride, when set, replaces every event URL from this feed.
	URLOverride *string `yaml:"url_override" json:"url_override,omitempty"`
	// ScanForMetadata enables the structured-data scrape of event pages.
	ScanForMetadata bool `yaml:"scan_for_metadata" json:"scan_for_metadata"`
}

// RawEvent is one concrete occurrence produced by recurrence expansion.
// It only lives within a single pipeline run.
type RawEvent struct {
	Title       string
	Description string
	Location    string
	URL         string
	Categories  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	GroupID string
}

// EnrichedEvent is a RawEvent after URL resolution, metadata scraping,
// location classification, identity hashing, override application and
// category resolution.
type EnrichedEvent struct {
	GUID string

	Title       string
	Description string
	Location    string
	URL         string

	// Date and Time are the canonical local-zone strings ("2006-01-02",
	// "15:04") the GUID is derived from.
	Date string
	Time string

	Start time.Time
	End   time.Time

	City         string
	State        string
	LocationType string

	Categories []string

	GroupID      string
	GroupName    string
	GroupWebsite string

	// Hidden is set by a moderator override; hidden events are dropped
	// before dedup.
	Hidden bool
	// DuplicateOf names the GUID of the primary posting of this event,
	// when a moderator has linked them explicitly.
	DuplicateOf string
}

// CrossPost records one additional group that published the same
// real-world event.
type CrossPost struct {
	Group        string `json:"group"`
	GroupWebsite string `json:"group_website"`
	URL          string `json:"url"`
}

// ConsolidatedEvent is the durable, post-dedup record keyed by GUID.
type ConsolidatedEvent struct {
	GUID string `json:"guid"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	URL         string `json:"url"`

	Date string `json:"date"`
	Time string `json:"time"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	City         string `json:"city"`
	State        string `json:"state"`
	LocationType string `json:"location_type"`

	Categories []string `json:"categories"`

	GroupID      string `json:"group_id"`
	GroupName    string `json:"group_name"`
	GroupWebsite string `json:"group_website"`

	AlsoPublishedBy []CrossPost `json:"also_published_by"`

	// CreatedAt is set once at first sight and never overwritten.
	CreatedAt time.Time `json:"created_at"`
	// LastSeen is the date ("2006-01-02") of the most recent run in
	// which the GUID was still present in its source feed.
	LastSeen string `json:"last_seen"`
	Status   string `json:"status"`
}

// Override is a sparse moderator correction keyed by GUID. Only non-nil
// fields are applied; absence of an override is the common case.
type Override struct {
	GUID string `json:"guid"`

	Title      *string  `json:"title,omitempty"`
	URL        *string  `json:"url,omitempty"`
	Location   *string  `json:"location,omitempty"`
	Time       *string  `json:"time,omitempty"`
	Categories []string `json:"categories,omitempty"`

	Hidden      *bool   `json:"hidden,omitempty"`
	DuplicateOf *string `json:"duplicate_of,omitempty"`
}

// Category describes one known category slug.
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// ManualEvent is a hand-entered one-off submission. It bypasses the
// feed fetch and recurrence expansion but flows through the same
// identity, override and category steps as feed events.
type ManualEvent struct {
	ID string `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	URL         string `json:"url"`

	Date string `json:"date"`
	Time string `json:"time"`

	// GroupName optionally associates the submission with a group for
	// display; it does not affect identity.
	GroupName string `json:"group_name"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// RunSummary is the operational outcome of one pipeline run.
type RunSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	GroupsProcessed int `json:"groups_processed"`
	GroupsUnchanged int `json:"groups_unchanged"`
	GroupsSkipped   int `json:"groups_skipped"`

	EventsCreated int `json:"events_created"`
	EventsUpdated int `json:"events_updated"`
	EventsRemoved int `json:"events_removed"`
	EventsDropped int `json:"events_dropped"`

	Errors []string `json:"errors"`
}
