package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techcal/internal/logging"
)

const icsBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

func newTestClient(t *testing.T, minInterval time.Duration) *Client {
	t.Helper()
	return NewClient(t.TempDir(), minInterval, 5*time.Second, logging.NewWithService("error", "test"))
}

func TestFetchFreshThenNotModified(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(icsBody))
	}))
	defer srv.Close()

	c := newTestClient(t, 0)

	res, err := c.Fetch(context.Background(), "g1", srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, icsBody, string(res.Body))

	// Second fetch sends the validator and gets a 304.
	res, err = c.Fetch(context.Background(), "g1", srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, icsBody, string(res.Body))
	assert.Equal(t, 2, requests)
}

func TestFetchMinIntervalSkipsNetwork(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(icsBody))
	}))
	defer srv.Close()

	c := newTestClient(t, 4*time.Hour)

	res, err := c.Fetch(context.Background(), "g1", srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	// Within the interval: no request at all, cached body reused.
	res, err = c.Fetch(context.Background(), "g1", srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, icsBody, string(res.Body))
	assert.Equal(t, 1, requests)

	// Once the interval elapses, the client fetches again.
	c.now = func() time.Time { return time.Now().Add(5 * time.Hour) }
	res, err = c.Fetch(context.Background(), "g1", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestFetchServerErrorFallsBackToCache(t *testing.T) {
	failing := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(icsBody))
	}))
	defer srv.Close()

	c := newTestClient(t, 0)

	_, err := c.Fetch(context.Background(), "g1", srv.URL)
	require.NoError(t, err)

	failing = true
	res, err := c.Fetch(context.Background(), "g1", srv.URL)
	assert.Error(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, icsBody, string(res.Body), "cached body survives a 5xx")
}

func TestFetchErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, 0)
	res, err := c.Fetch(context.Background(), "g1", srv.URL)
	assert.Error(t, err)
	assert.Empty(t, res.Body)
}

func TestFetchEmptyURL(t *testing.T) {
	c := newTestClient(t, 0)
	_, err := c.Fetch(context.Background(), "g1", "")
	assert.Error(t, err)
}

func TestCoerceScheme(t *testing.T) {
	cases := map[string]string{
		"https://example.com/cal.ics":  "https://example.com/cal.ics",
		"http://example.com/cal.ics":   "http://example.com/cal.ics",
		"webcal://example.com/c.ics":   "https://example.com/c.ics",
		"example.com/cal.ics":          "https://example.com/cal.ics",
		"example.com:8080/cal.ics":     "https://example.com:8080/cal.ics",
		"www.example.com:8443/sub.ics": "https://www.example.com:8443/sub.ics",
	}
	for in, want := range cases {
		assert.Equal(t, want, coerceScheme(in), in)
	}
}
