// Package github fetches a user's public repositories from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"devconnector/cache"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.github.com"
	userAgent      = "devconnector"
)

var (
	// ErrNotFound means GitHub answered with anything but 200.
	ErrNotFound = errors.New("github: no profile found")
	// ErrUpstream means GitHub could not be reached or sent an unreadable body.
	ErrUpstream = errors.New("github: upstream request failed")
)

type Repo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	HTMLURL     string    `json:"html_url"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	Watchers    int       `json:"watchers_count"`
	Forks       int       `json:"forks_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Options struct {
	BaseURL      string
	Token        string
	ClientID     string
	ClientSecret string
	CacheTTL     time.Duration
	Timeout      time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	cache      cache.Cache
	ttl        time.Duration
	log        zerolog.Logger
}

// NewClient builds a client. A token takes precedence over client id and
// secret. c may be nil to disable caching.
func NewClient(opts Options, c cache.Cache, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.Background(), src)
		httpClient.Timeout = opts.Timeout
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		clientID:   opts.ClientID,
		secret:     opts.ClientSecret,
		cache:      c,
		ttl:        opts.CacheTTL,
		log:        log,
	}
}

// Repos returns the user's five oldest-created repositories.
func (c *Client) Repos(ctx context.Context, username string) ([]Repo, error) {
	key := "github:repos:" + strings.ToLower(username)
	if c.cache != nil {
		var cached []Repo
		ok, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("GitHub cache read failed")
		}
		if ok {
			return cached, nil
		}
	}

	repos, err := c.fetch(ctx, username)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, key, repos, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("GitHub cache write failed")
		}
	}
	return repos, nil
}

func (c *Client) fetch(ctx context.Context, username string) ([]Repo, error) {
	reqURL := fmt.Sprintf("%s/users/%s/repos?per_page=5&sort=created:asc", c.baseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.clientID != "" && c.secret != "" {
		req.SetBasicAuth(c.clientID, c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("username", username).Msg("GitHub request failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Info().Int("status", resp.StatusCode).Str("username", username).Msg("GitHub returned non-200")
		return nil, ErrNotFound
	}

	repos := []Repo{}
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return repos, nil
}
