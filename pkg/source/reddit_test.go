package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = RedditCredentials{
	ClientID:     "id",
	ClientSecret: "secret",
	UserAgent:    "datacollect-test/1.0",
	Username:     "user",
	Password:     "pass",
}

type redditFixture struct {
	t          *testing.T
	tokenCalls int
	searches   []string
	// posts keyed by subreddit; each entry is a JSON post object.
	posts map[string][]map[string]any
}

func newRedditServer(f *redditFixture) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		user, pass, ok := r.BasicAuth()
		assert.True(f.t, ok)
		assert.NoError(f.t, r.ParseForm())

		if user != testCreds.ClientID || pass != testCreds.ClientSecret {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Form.Get("grant_type") != "password" || r.Form.Get("password") != testCreds.Password {
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/r/{sub}/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(f.t, testCreds.UserAgent, r.Header.Get("User-Agent"))
		assert.Equal(f.t, "1", r.URL.Query().Get("restrict_sr"))

		sub := r.PathValue("sub")
		f.searches = append(f.searches, sub+"?"+r.URL.RawQuery)

		all := f.posts[sub]
		start := 0
		if after := r.URL.Query().Get("after"); after != "" {
			start, _ = strconv.Atoi(after)
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := min(start+limit, len(all))

		children := []map[string]any{}
		for _, p := range all[start:end] {
			children = append(children, map[string]any{"kind": "t3", "data": p})
		}
		next := ""
		if end < len(all) {
			next = strconv.Itoa(end)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"after": next, "children": children},
		})
	})
	return httptest.NewServer(mux)
}

func newTestReddit(srv *httptest.Server, creds RedditCredentials) *Reddit {
	r := NewReddit(creds)
	r.authURL = srv.URL
	r.apiURL = srv.URL
	return r
}

func TestRedditFetchPostsMissingAuthor(t *testing.T) {
	f := &redditFixture{t: t, posts: map[string][]map[string]any{
		"TestSub": {{"title": "x marks", "selftext": "body", "author": nil, "score": 5, "created_utc": 1700000000.0}},
	}}
	srv := newRedditServer(f)
	defer srv.Close()

	posts, err := newTestReddit(srv, testCreds).FetchPosts(context.Background(), []string{"TestSub"}, "x", 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	p := posts[0]
	assert.Nil(t, p.Author)
	assert.True(t, p.HasMissing())
	assert.Equal(t, "x marks", p.Title)
	assert.Equal(t, "body", p.Body)
	assert.Equal(t, 5, p.Score)
	assert.Equal(t, float64(1700000000), p.Timestamp)
	assert.Equal(t, "TestSub", p.Community)
}

func TestRedditDeletedAuthorIsMissing(t *testing.T) {
	f := &redditFixture{t: t, posts: map[string][]map[string]any{
		"Bitcoin": {
			{"title": "a", "author": "[deleted]"},
			{"title": "b", "author": "alice"},
		},
	}}
	srv := newRedditServer(f)
	defer srv.Close()

	posts, err := newTestReddit(srv, testCreds).FetchPosts(context.Background(), []string{"Bitcoin"}, "crypto", 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Nil(t, posts[0].Author)
	require.NotNil(t, posts[1].Author)
	assert.Equal(t, "alice", *posts[1].Author)
}

func TestRedditPaginatesUpToLimit(t *testing.T) {
	var many []map[string]any
	for i := range 250 {
		many = append(many, map[string]any{"title": fmt.Sprintf("post %d", i), "author": "bob"})
	}
	f := &redditFixture{t: t, posts: map[string][]map[string]any{"CryptoCurrency": many, "Bitcoin": many[:3]}}
	srv := newRedditServer(f)
	defer srv.Close()

	posts, err := newTestReddit(srv, testCreds).FetchPosts(context.Background(), []string{"CryptoCurrency", "Bitcoin"}, "crypto", 200)
	require.NoError(t, err)

	require.Len(t, posts, 203)
	assert.Equal(t, "post 199", posts[199].Title)
	assert.Equal(t, "CryptoCurrency", posts[199].Community)
	assert.Equal(t, "Bitcoin", posts[200].Community)
	// Two pages for the first subreddit, one for the second, one token.
	assert.Len(t, f.searches, 3)
	assert.Equal(t, 1, f.tokenCalls)
}

func TestRedditAuthenticationErrors(t *testing.T) {
	f := &redditFixture{t: t}
	srv := newRedditServer(f)
	defer srv.Close()

	cases := map[string]RedditCredentials{
		"missing":      {ClientID: "id"},
		"bad client":   {ClientID: "id", ClientSecret: "wrong", UserAgent: "ua", Username: "user", Password: "pass"},
		"bad password": {ClientID: "id", ClientSecret: "secret", UserAgent: "ua", Username: "user", Password: "nope"},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestReddit(srv, creds).FetchPosts(context.Background(), []string{"Bitcoin"}, "crypto", 1)
			assert.ErrorIs(t, err, ErrAuthentication)
		})
	}
	assert.Empty(t, f.searches)
}

func TestRedditSearchStatusIsNetworkError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/r/{sub}/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestReddit(srv, testCreds).FetchPosts(context.Background(), []string{"Bitcoin"}, "crypto", 1)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestRedditTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := newTestReddit(srv, testCreds).FetchPosts(context.Background(), []string{"Bitcoin"}, "crypto", 1)
	assert.ErrorIs(t, err, ErrNetwork)
}
