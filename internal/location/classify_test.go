package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyVirtual(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"Zoom (link in description)",
		"Online event",
		"Virtual - register for link",
		"Remote via Teams",
		"Monthly webinar",
	}
	for _, c := range cases {
		got := Classify(c)
		assert.True(t, got.Virtual, "location %q should be virtual", c)
	}
}

func TestClassifyAddress(t *testing.T) {
	cases := []struct {
		in    string
		city  string
		state string
	}{
		{"123 Main St, Baltimore, MD", "Baltimore", "MD"},
		{"123 Main St, Baltimore, MD 21201, USA", "Baltimore", "MD"},
		{"Impact Hub, 1701 Rhode Island Ave NW, Washington, District of Columbia", "Washington", "DC"},
		{"Arlington, Virginia", "Arlington", "VA"},
		// DC implies Washington even when the feed writes something else.
		{"The Wharf, DC", "Washington", "DC"},
	}
	for _, c := range cases {
		got := Classify(c.in)
		assert.False(t, got.Virtual, c.in)
		assert.Equal(t, c.state, got.State, c.in)
		assert.Equal(t, c.city, got.City, c.in)
	}
}

func TestClassifyFallbackTokenScan(t *testing.T) {
	got := Classify("Some venue near Silver Spring MD no commas at all")
	assert.Equal(t, "MD", got.State)
}

func TestClassifyUnresolved(t *testing.T) {
	got := Classify("The old mill by the river")
	assert.False(t, got.Virtual)
	assert.Empty(t, got.State)
}

func TestAllowed(t *testing.T) {
	only := []string{"DC"}

	// Near-miss typo of DC passes while DC is allowed.
	assert.True(t, Allowed(Classify("Washington, DI").State, only))
	// Out-of-list state is dropped.
	assert.False(t, Allowed(Classify("Baltimore, MD").State, only))
	// Unresolved state is kept by default.
	assert.True(t, Allowed("", only))
	// Empty allow-list admits everything.
	assert.True(t, Allowed("MD", nil))
}
