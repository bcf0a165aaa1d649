package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	redditAuthURL = "https://www.reddit.com"
	redditAPIURL  = "https://oauth.reddit.com"

	// Reddit never returns more than this many listing entries per request.
	redditPageSize = 100
)

// RedditCredentials are the script-app credentials for the password grant.
type RedditCredentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Username     string
	Password     string
}

// Complete reports whether every credential is set.
func (c RedditCredentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.UserAgent != "" &&
		c.Username != "" && c.Password != ""
}

// Reddit searches subreddits through the authenticated Reddit API.
type Reddit struct {
	client      *http.Client
	creds       RedditCredentials
	authURL     string
	apiURL      string
	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewReddit creates a new Reddit client.
func NewReddit(creds RedditCredentials) *Reddit {
	return &Reddit{
		client:  &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
		authURL: redditAuthURL,
		apiURL:  redditAPIURL,
	}
}

func (r *Reddit) Name() SourceType { return SourceReddit }

// FetchPosts runs a keyword search in each subreddit, capped at limit posts per subreddit.
func (r *Reddit) FetchPosts(ctx context.Context, subreddits []string, keyword string, limit int) ([]SocialPost, error) {
	if err := r.authenticate(ctx); err != nil {
		return nil, fmt.Errorf("reddit auth: %w", err)
	}

	var posts []SocialPost
	for _, sub := range subreddits {
		found, err := r.search(ctx, sub, keyword, limit)
		if err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Debug().Str("subreddit", sub).Int("posts", len(found)).Msg("reddit search")
		posts = append(posts, found...)
	}
	return posts, nil
}

func (r *Reddit) authenticate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return nil
	}
	if !r.creds.Complete() {
		return fmt.Errorf("%w: missing reddit credentials", ErrAuthentication)
	}

	data := url.Values{
		"grant_type": {"password"},
		"username":   {r.creds.Username},
		"password":   {r.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.authURL+"/api/v1/access_token",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}

	req.SetBasicAuth(r.creds.ClientID, r.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.creds.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: reddit token request: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: reddit token status %d", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return networkErr("reddit token status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("%w: decode reddit token: %w", ErrParse, err)
	}
	// Bad username/password comes back as 200 with an error field.
	if tokenResp.Error != "" || tokenResp.AccessToken == "" {
		return fmt.Errorf("%w: reddit token: %s", ErrAuthentication, tokenResp.Error)
	}

	r.token = tokenResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return nil
}

func (r *Reddit) search(ctx context.Context, subreddit, keyword string, limit int) ([]SocialPost, error) {
	var (
		posts []SocialPost
		after string
	)

	for len(posts) < limit {
		page := min(limit-len(posts), redditPageSize)
		listing, err := r.searchPage(ctx, subreddit, keyword, page, after)
		if err != nil {
			return nil, err
		}

		for _, child := range listing.Data.Children {
			posts = append(posts, child.Data.toPost(subreddit))
			if len(posts) == limit {
				break
			}
		}

		after = listing.Data.After
		if after == "" || len(listing.Data.Children) == 0 {
			break
		}
	}

	return posts, nil
}

func (r *Reddit) searchPage(ctx context.Context, subreddit, keyword string, limit int, after string) (*redditListing, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("restrict_sr", "1")
	params.Set("sort", "relevance")
	params.Set("t", "all")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}

	reqURL := fmt.Sprintf("%s/r/%s/search?%s", r.apiURL, url.PathEscape(subreddit), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("User-Agent", r.creds.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search r/%s: %w", ErrNetwork, subreddit, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: search r/%s status %d", ErrAuthentication, subreddit, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, networkErr("search r/%s status %d", subreddit, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("%w: decode r/%s: %w", ErrParse, subreddit, err)
	}
	return &listing, nil
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Author     *string `json:"author"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

func (p redditPost) toPost(subreddit string) SocialPost {
	return SocialPost{
		Title:     p.Title,
		Body:      p.Selftext,
		Author:    normalizeAuthor(p.Author),
		Timestamp: p.CreatedUTC,
		Score:     p.Score,
		Community: subreddit,
	}
}

// normalizeAuthor maps Reddit's placeholder for deleted accounts to a missing author.
func normalizeAuthor(author *string) *string {
	if author == nil || *author == "" || *author == "[deleted]" {
		return nil
	}
	name := *author
	return &name
}
