// Package identity computes the content-derived GUID that serves as the
// durable, cross-run identity of an event occurrence.
package identity

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// Hash derives the GUID for one event occurrence from its local-zone
// date ("2006-01-02"), time ("15:04"), title and URL. The URL is
// omitted when empty. Every consumer of event identity (ingestion,
// overrides, dedup, the read API) must call this same function;
// changing the field set or ordering orphans all stored overrides.
func Hash(date, timeStr, title, url string) string {
	parts := []string{date, timeStr, title}
	if url != "" {
		parts = append(parts, url)
	}
	sum := md5.Sum([]byte(strings.Join(parts, "-")))
	return fmt.Sprintf("%x", sum)
}
