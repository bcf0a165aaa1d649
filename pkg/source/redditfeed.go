package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

const redditFeedURL = "https://www.reddit.com"

// RedditFeed searches subreddits through the public search.rss feed.
// It needs no credentials, but feeds carry no score so Score is always 0.
type RedditFeed struct {
	client    *http.Client
	parser    *gofeed.Parser
	baseURL   string
	userAgent string
}

// NewRedditFeed creates a feed-backed Reddit client.
func NewRedditFeed(ua string) *RedditFeed {
	if ua == "" {
		ua = userAgent
	}
	return &RedditFeed{
		client:    &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		baseURL:   redditFeedURL,
		userAgent: ua,
	}
}

func (f *RedditFeed) Name() SourceType { return SourceRedditFeed }

func (f *RedditFeed) FetchPosts(ctx context.Context, subreddits []string, keyword string, limit int) ([]SocialPost, error) {
	var posts []SocialPost
	for _, sub := range subreddits {
		found, err := f.searchFeed(ctx, sub, keyword, limit)
		if err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Debug().Str("subreddit", sub).Int("posts", len(found)).Msg("reddit feed search")
		posts = append(posts, found...)
	}
	return posts, nil
}

func (f *RedditFeed) searchFeed(ctx context.Context, subreddit, keyword string, limit int) ([]SocialPost, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("restrict_sr", "on")
	params.Set("limit", strconv.Itoa(min(limit, redditPageSize)))

	reqURL := fmt.Sprintf("%s/r/%s/search.rss?%s", f.baseURL, url.PathEscape(subreddit), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request r/%s: %w", subreddit, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch feed r/%s: %w", ErrNetwork, subreddit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, networkErr("feed r/%s status %d", subreddit, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed r/%s: %w", ErrParse, subreddit, err)
	}

	var posts []SocialPost
	for _, entry := range parsed.Items {
		if len(posts) == limit {
			break
		}

		var published time.Time
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}

		var author *string
		if entry.Author != nil {
			name := strings.TrimPrefix(entry.Author.Name, "/u/")
			author = normalizeAuthor(&name)
		}

		body := entry.Content
		if body == "" {
			body = entry.Description
		}

		posts = append(posts, SocialPost{
			Title:     entry.Title,
			Body:      body,
			Author:    author,
			Timestamp: float64(published.Unix()),
			Community: subreddit,
		})
	}

	return posts, nil
}
