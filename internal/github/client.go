// Package github fetches the site owner's recent public GitHub activity,
// falling back to the last good copy when the API is unavailable.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperror "portfolio-edge/internal/error"
	"portfolio-edge/internal/storage"
)

const (
	defaultBaseURL  = "https://api.github.com"
	defaultPerPage  = 30
	defaultTimeout  = 10 * time.Second
	defaultFreshFor = 5 * time.Minute
	defaultStaleFor = 24 * time.Hour
)

// Event is a trimmed public GitHub event.
type Event struct {
	Type      string    `json:"type"`
	Repo      string    `json:"repo"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats summarises the events window.
type Stats struct {
	Pushes       int `json:"pushes"`
	PullRequests int `json:"pullRequests"`
	Issues       int `json:"issues"`
	Stars        int `json:"stars"`
	Repos        int `json:"repos"`
}

// Activity is what the edge function returns.
type Activity struct {
	User      string    `json:"user"`
	Events    []Event   `json:"events"`
	Stats     Stats     `json:"stats"`
	FetchedAt time.Time `json:"fetchedAt"`
	Cached    bool      `json:"cached"`
}

// Client performs the GitHub fetch. Cache may be nil.
type Client struct {
	BaseURL    string
	User       string
	Token      string
	PerPage    int
	HTTPClient *http.Client
	Timeout    time.Duration
	Cache      storage.CacheStore
	// FreshFor is how long a cached copy is served without asking GitHub;
	// StaleFor is how long it is kept as a fallback.
	FreshFor time.Duration
	StaleFor time.Duration
	Clock    func() time.Time
	Logger   *zap.Logger
}

type rawEvent struct {
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	CreatedAt time.Time `json:"created_at"`
}

// ------------------------------------------------------------------------------------------------------
// Activity returns recent activity for the configured user. A fresh cached
// copy short-circuits the fetch; a failed fetch falls back to any cached copy.
func (c *Client) Activity(ctx context.Context) (*Activity, error) {
	if c == nil || strings.TrimSpace(c.User) == "" {
		return nil, apperror.NewInternalError("github user is not configured", nil)
	}

	cached := c.cached(ctx)
	if cached != nil && c.now().Sub(cached.FetchedAt) < durationOr(c.FreshFor, defaultFreshFor) {
		cached.Cached = true
		return cached, nil
	}

	fresh, err := c.fetch(ctx)
	if err == nil {
		c.store(ctx, fresh)
		return fresh, nil
	}

	if cached != nil {
		c.logger().Warn("GitHub fetch failed, serving cached activity",
			zap.Error(err),
			zap.Time("fetched_at", cached.FetchedAt),
		)
		cached.Cached = true
		return cached, nil
	}

	return nil, err
}

func (c *Client) fetch(ctx context.Context) (*Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, durationOr(c.Timeout, defaultTimeout))
	defer cancel()

	reqURL, err := c.eventsURL()
	if err != nil {
		return nil, apperror.NewInternalError("invalid github base url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperror.NewInternalError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if token := strings.TrimSpace(c.Token); token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperror.NewTimeoutError("github request timed out", err)
		}
		return nil, apperror.NewUpstreamError("github request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, apperror.NewUpstreamError(
			"github request failed",
			fmt.Errorf("%w: status %d, body: %s", apperror.ErrGitHubStatus, resp.StatusCode, string(bodyBytes)),
		)
	}

	var raw []rawEvent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperror.NewUpstreamError("failed to decode github response", err)
	}

	return summarize(c.User, raw, c.now()), nil
}

func summarize(user string, raw []rawEvent, now time.Time) *Activity {
	activity := &Activity{User: user, Events: make([]Event, 0, len(raw)), FetchedAt: now}
	repos := make(map[string]struct{})

	for _, ev := range raw {
		activity.Events = append(activity.Events, Event{Type: ev.Type, Repo: ev.Repo.Name, CreatedAt: ev.CreatedAt})
		if ev.Repo.Name != "" {
			repos[ev.Repo.Name] = struct{}{}
		}
		switch ev.Type {
		case "PushEvent":
			activity.Stats.Pushes++
		case "PullRequestEvent":
			activity.Stats.PullRequests++
		case "IssuesEvent":
			activity.Stats.Issues++
		case "WatchEvent":
			activity.Stats.Stars++
		}
	}
	activity.Stats.Repos = len(repos)
	return activity
}

func (c *Client) eventsURL() (string, error) {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	u.Path += "/users/" + url.PathEscape(c.User) + "/events/public"

	perPage := c.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	q := u.Query()
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) cacheKey() string {
	return "github:activity:" + strings.ToLower(c.User)
}

func (c *Client) cached(ctx context.Context) *Activity {
	if c.Cache == nil {
		return nil
	}
	data, ok, err := c.Cache.Get(ctx, c.cacheKey())
	if err != nil {
		c.logger().Warn("Failed to read github cache", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var activity Activity
	if err := json.Unmarshal(data, &activity); err != nil {
		c.logger().Warn("Discarding unreadable github cache entry", zap.Error(err))
		return nil
	}
	return &activity
}

func (c *Client) store(ctx context.Context, activity *Activity) {
	if c.Cache == nil {
		return
	}
	data, err := json.Marshal(activity)
	if err != nil {
		return
	}
	if err := c.Cache.Set(ctx, c.cacheKey(), data, durationOr(c.StaleFor, defaultStaleFor)); err != nil {
		c.logger().Warn("Failed to write github cache", zap.Error(err))
	}
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
