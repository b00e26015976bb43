// SPDX-License-Identifier: MPL-2.0

// Package ghrelease lists git tags and downloads release artifacts from
// GitHub-hosted projects (docker/compose, docker/compose-switch). Tag
// listings feed the version selector; artifact downloads are streamed so the
// installer can verify checksums before anything reaches its final path.
package ghrelease

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// defaultPerPage is the number of tags fetched per API page.
	defaultPerPage = 100

	// maxPages is the upper bound on pagination to avoid runaway requests.
	maxPages = 5

	// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
	maxJSONResponseBytes = 10 << 20
)

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// githubTag is the JSON wire format for one entry of the tags listing.
	githubTag struct {
		Name string `json:"name"`
	}

	// Client queries the GitHub API for tag listings and downloads release
	// assets. The zero value is not usable; construct with NewClient.
	Client struct {
		httpClient *http.Client
		baseURL    string // API base URL (default: "https://api.github.com", overridable for tests)
		dlBaseURL  string // Release download base URL (default: "https://github.com")
		token      string // Optional GITHUB_TOKEN for authenticated requests
		userAgent  string // User-Agent header value
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *Client) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the GitHub API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *Client) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithDownloadBaseURL overrides the release download base URL for tests.
func WithDownloadBaseURL(base string) ClientOption {
	return func(g *Client) {
		g.dlBaseURL = strings.TrimRight(base, "/")
	}
}

// WithToken sets a GitHub personal access token for authenticated requests.
// Authenticated requests have a higher rate limit (5000/hour vs 60/hour).
func WithToken(token string) ClientOption {
	return func(g *Client) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *Client) {
		g.userAgent = ua
	}
}

// NewClient creates a Client with production defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    "https://api.github.com",
		dlBaseURL:  "https://github.com",
		userAgent:  "dindctl/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTags fetches the tag names of the given "owner/name" repository in the
// API's own ordering (newest tags first). Pagination is followed up to
// maxPages via the Link header.
func (c *Client) ListTags(ctx context.Context, repo string) ([]string, error) {
	pageURL := fmt.Sprintf("%s/repos/%s/tags?per_page=%d", c.baseURL, repo, defaultPerPage)

	var all []string

	for page := 0; page < maxPages && pageURL != ""; page++ {
		resp, reqErr := c.doRequest(ctx, pageURL)
		if reqErr != nil {
			return nil, fmt.Errorf("listing tags for %s: %w", repo, reqErr)
		}

		if rlErr := checkRateLimit(resp); rlErr != nil {
			resp.Body.Close()
			return nil, rlErr
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("listing tags for %s: unexpected status %d", repo, resp.StatusCode)
		}

		var tags []githubTag
		decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&tags)
		if decodeErr != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("listing tags for %s: decoding response: %w", repo, decodeErr)
		}

		for _, t := range tags {
			all = append(all, t.Name)
		}

		pageURL = parseLinkHeader(resp.Header.Get("Link"))
		resp.Body.Close()
	}

	return all, nil
}

// DownloadURL builds the direct download URL for a release asset of the
// given "owner/name" repository at the given tag.
func (c *Client) DownloadURL(repo, tag, filename string) string {
	return fmt.Sprintf("%s/%s/releases/download/%s/%s", c.dlBaseURL, repo, tag, filename)
}

// DownloadAsset streams the file at the given URL. The caller is responsible
// for closing the returned ReadCloser.
func (c *Client) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	resp, err := c.doRequest(ctx, assetURL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("downloading %s: unexpected status %d", redactURL(assetURL), resp.StatusCode)
	}

	return resp.Body, nil
}

// doRequest creates and executes a GET request with common GitHub API headers.
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	// Only attach the auth token when the request targets a known GitHub host.
	// This prevents token leakage if a download URL redirects to a third-party CDN.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

// checkRateLimit inspects the X-RateLimit-* response headers and returns a
// RateLimitError when the remaining quota is zero. Only the header values are
// examined, not the status code.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil {
		// Malformed header value; skip rate limit check.
		return nil //nolint:nilerr // Non-numeric header is non-fatal.
	}

	if rem > 0 {
		return nil
	}

	// Companion headers enrich the error message; malformed values default to
	// zero, which is acceptable for diagnostics.
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// parseLinkHeader extracts the URL for the "next" page from a GitHub API Link
// header. Returns an empty string if no next page exists.
//
// Example header: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkHeader(header string) string {
	if header == "" {
		return ""
	}

	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}

		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}

	return ""
}

// isGitHubHost reports whether reqURL targets a known GitHub host, so the
// auth token can be safely attached.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	// When the API base is api.github.com, also trust github.com for asset downloads.
	if strings.EqualFold(base.Host, "api.github.com") && strings.EqualFold(reqURL.Host, "github.com") {
		return true
	}
	return false
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
