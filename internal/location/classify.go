// Package location derives city/state/virtual classification from the
// free-text location strings calendar feeds carry.
package location

import (
	"regexp"
	"strings"
)

// Classification is the outcome of classifying one location string.
type Classification struct {
	City    string
	State   string
	Virtual bool
}

// virtualVocabulary marks a location as online rather than physical.
var virtualVocabulary = []string{"virtual", "zoom", "webinar", "online", "remote"}

// stateAbbrs is the set of recognized two-letter US state codes.
var stateAbbrs = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true,
	"CO": true, "CT": true, "DE": true, "DC": true, "FL": true,
	"GA": true, "HI": true, "ID": true, "IL": true, "IN": true,
	"IA": true, "KS": true, "KY": true, "LA": true, "ME": true,
	"MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true,
	"NJ": true, "NM": true, "NY": true, "NC": true, "ND": true,
	"OH": true, "OK": true, "OR": true, "PA": true, "RI": true,
	"SC": true, "SD": true, "TN": true, "TX": true, "UT": true,
	"VT": true, "VA": true, "WA": true, "WV": true, "WI": true,
	"WY": true,
}

// stateNames maps lowercase full state names to abbreviations.
var stateNames = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT",
	"delaware": "DE", "district of columbia": "DC", "florida": "FL",
	"georgia": "GA", "hawaii": "HI", "idaho": "ID", "illinois": "IL",
	"indiana": "IN", "iowa": "IA", "kansas": "KS", "kentucky": "KY",
	"louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT",
	"nebraska": "NE", "nevada": "NV", "new hampshire": "NH",
	"new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA",
	"rhode island": "RI", "south carolina": "SC", "south dakota": "SD",
	"tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
	"virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
}

// dcTypos are observed hand-typed near-misses of "DC".
var dcTypos = map[string]bool{"DI": true, "CD": true}

var stateTokenRe = regexp.MustCompile(`\b([A-Z]{2})\b`)

// Classify derives city, state and the virtual flag from a free-text
// location. Empty locations and locations using virtual-meeting
// vocabulary are classified virtual. Otherwise it attempts to parse a
// trailing "City, ST" form, falling back to a token scan for any known
// state abbreviation.
func Classify(locationText string) Classification {
	text := strings.TrimSpace(locationText)
	if text == "" {
		return Classification{Virtual: true}
	}

	lower := strings.ToLower(text)
	for _, word := range virtualVocabulary {
		if strings.Contains(lower, word) {
			return Classification{Virtual: true}
		}
	}

	city, state := parseAddress(text)
	if state == "" {
		state = scanStateToken(text)
	}
	if state == "DC" {
		city = "Washington"
	}
	return Classification{City: city, State: state}
}

// parseAddress walks address segments from the end looking for a state,
// taking the preceding segment as the city.
func parseAddress(text string) (city, state string) {
	parts := strings.Split(text, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		seg := strings.TrimSpace(parts[i])
		if seg == "" {
			continue
		}

		if abbr := segmentState(seg); abbr != "" {
			if i > 0 {
				city = strings.TrimSpace(parts[i-1])
			}
			return city, abbr
		}
	}
	return "", ""
}

// segmentState extracts a state code from one comma-separated segment,
// tolerating trailing zip codes and country suffixes ("MD 21201").
func segmentState(seg string) string {
	lower := strings.ToLower(seg)
	if abbr, ok := stateNames[lower]; ok {
		return abbr
	}

	fields := strings.Fields(seg)
	for _, f := range fields {
		upper := strings.ToUpper(strings.Trim(f, ".,"))
		if len(upper) == 2 && (stateAbbrs[upper] || dcTypos[upper]) {
			return upper
		}
	}
	return ""
}

func scanStateToken(text string) string {
	for _, m := range stateTokenRe.FindAllString(text, -1) {
		if stateAbbrs[m] || dcTypos[m] {
			return m
		}
	}
	return ""
}

// Allowed reports whether an event with the given resolved state passes
// the deployment allow-list. An empty allow-list admits everything.
// Unresolved states are kept: an ambiguous location is worse to drop
// than to show. The DI/CD near-miss typos of DC pass when DC itself is
// allowed.
func Allowed(state string, onlyStates []string) bool {
	if len(onlyStates) == 0 {
		return true
	}
	if state == "" {
		return true
	}

	dcAllowed := false
	for _, s := range onlyStates {
		if strings.EqualFold(s, state) {
			return true
		}
		if strings.EqualFold(s, "DC") {
			dcAllowed = true
		}
	}
	if dcTypos[strings.ToUpper(state)] && dcAllowed {
		return true
	}
	return false
}
