package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/model"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://calendar.google.com/calendar/ical/abc/basic.ics", true},
		{"http://example.com/feed.ics", true},
		{"webcal://example.com/feed.ics", true},
		{"WEBCAL://EXAMPLE.COM/feed.ics", true},
		{"  https://example.com/feed.ics  ", true},
		{"ftp://example.com/feed.ics", false},
		{"example.com/feed.ics", false},
		{"", false},
		{"   ", false},
		{"httpss://example.com", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ValidateURL(tc.raw), "input %q", tc.raw)
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("webcal://example.com/team.ics")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/team.ics", got)

	got, err = NormalizeURL("  https://example.com/team.ics ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/team.ics", got)

	_, err = NormalizeURL("not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestFetchSuccess(t *testing.T) {
	body := lines("BEGIN:VCALENDAR", "END:VCALENDAR")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	raw, err := f.Fetch(context.Background(), model.Feed{URL: srv.URL, ID: "school", Name: "School"})
	require.NoError(t, err)
	assert.Equal(t, body, raw)
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	_, err := f.Fetch(context.Background(), model.Feed{URL: srv.URL, ID: "school", Name: "School"})
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "school", fe.FeedID)
	assert.Equal(t, "School", fe.FeedName)
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("   \n"))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	_, err := f.Fetch(context.Background(), model.Feed{URL: srv.URL, ID: "empty"})
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewFetcher(50 * time.Millisecond)
	_, err := f.Fetch(context.Background(), model.Feed{URL: srv.URL, ID: "slow"})
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "slow", fe.FeedID)
}

func TestFetchInvalidURL(t *testing.T) {
	f := NewFetcher(time.Second)
	_, err := f.Fetch(context.Background(), model.Feed{URL: "gopher://example.com", ID: "bad"})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/token-abc123.ics"))
	assert.Equal(t, "https://example.com", redactURL("https://example.com"))
}
