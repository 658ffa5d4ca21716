// Package pgxn talks to the upstream PGXN registry API and mirrors its
// users, distributions and release versions into the local store.
package pgxn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/pgxn-tester/server/internal/backoff"
)

// URITemplates is the subset of /index.json the sync job needs. Values
// are RFC 6570-ish templates, e.g. "/users/{letter}.json".
type URITemplates struct {
	UserList string `json:"userlist"`
	User     string `json:"user"`
	Meta     string `json:"meta"`
}

// UserEntry is one row of the per-letter user listing.
type UserEntry struct {
	User string `json:"user"`
	Name string `json:"name"`
}

// ReleaseVersion is one released version of a distribution, tagged with
// the release state it was published under.
type ReleaseVersion struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	State   string `json:"-"`
}

// UserReleases maps distribution name to its versions per release state
// (testing, unstable, stable).
type UserReleases map[string]map[string][]ReleaseVersion

type ClientOpts struct {
	BaseURL     string
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type Client struct {
	baseURL     string
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	httpc       *http.Client
	logger      *slog.Logger
	rng         *rand.Rand
}

func NewClient(opts ClientOpts) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		httpc:       opts.HTTPClient,
		logger:      opts.Logger,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 5
	}
	if c.baseBackoff <= 0 {
		c.baseBackoff = 2 * time.Second
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = time.Minute
	}
	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	return c
}

// getJSON fetches and decodes one API document, retrying transient
// failures (network errors and 5xx) with jittered exponential backoff.
// A 404 returns (false, nil) so callers can skip missing documents.
func (c *Client) getJSON(ctx context.Context, path string, dst any) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff.Delay(attempt-1, c.baseBackoff, c.maxBackoff, c.rng)
			c.logger.Debug("retrying registry request", "path", path, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return false, err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, dst); err != nil {
				return false, fmt.Errorf("decode %s: %w", path, err)
			}
			return true, nil
		case resp.StatusCode == http.StatusNotFound:
			return false, nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
			continue
		default:
			return false, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
	}
	return false, fmt.Errorf("GET %s: giving up after %d attempts: %w", path, c.maxAttempts, lastErr)
}

// Templates fetches the URI templates from the API root.
func (c *Client) Templates(ctx context.Context) (*URITemplates, error) {
	var t URITemplates
	ok, err := c.getJSON(ctx, "/index.json", &t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("registry has no /index.json")
	}
	if t.UserList == "" || t.User == "" || t.Meta == "" {
		return nil, fmt.Errorf("registry index is missing required templates")
	}
	return &t, nil
}

// Users walks the per-letter listings and returns every registered user.
func (c *Client) Users(ctx context.Context, t *URITemplates) ([]UserEntry, error) {
	var users []UserEntry
	for _, letter := range "abcdefghijklmnopqrstuvwxyz" {
		path := strings.ReplaceAll(t.UserList, "{letter}", string(letter))
		var page []UserEntry
		ok, err := c.getJSON(ctx, path, &page)
		if err != nil {
			return nil, err
		}
		if ok {
			users = append(users, page...)
		}
	}
	return users, nil
}

// Releases fetches the release listing for one user. Users without a
// document upstream yield an empty map.
func (c *Client) Releases(ctx context.Context, t *URITemplates, user string) (UserReleases, error) {
	path := strings.ReplaceAll(t.User, "{user}", user)
	var doc struct {
		Releases UserReleases `json:"releases"`
	}
	ok, err := c.getJSON(ctx, path, &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return UserReleases{}, nil
	}
	return doc.Releases, nil
}

// Meta fetches the raw META document for one distribution version. The
// payload is kept verbatim; prerequisite extraction happens downstream.
func (c *Client) Meta(ctx context.Context, t *URITemplates, dist, version string) ([]byte, error) {
	path := strings.ReplaceAll(t.Meta, "{dist}", strings.ToLower(dist))
	path = strings.ReplaceAll(path, "{version}", version)
	var raw json.RawMessage
	ok, err := c.getJSON(ctx, path, &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return raw, nil
}
