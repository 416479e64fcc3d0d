// Package source talks to the stories REST service.
package source

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "storyreel/0.3"

// Options configures a Client
type Options struct {
	// BaseURL points at the stories namespace, e.g. https://example.com/wp-json/cm/v1/
	BaseURL string

	// WPBaseURL points at the core posts namespace used for articles. Derived from
	// BaseURL when empty.
	WPBaseURL string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client fetches the story index, story details and articles
type Client struct {
	base       *url.URL
	wpBase     *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client. BaseURL is required.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("stories base url is not configured")
	}

	base, err := parseBase(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	wpRaw := opts.WPBaseURL
	if wpRaw == "" {
		wpRaw = strings.Replace(base.String(), "cm/v1/", "wp/v2/", 1)
	}
	wpBase, err := parseBase(wpRaw)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		base:       base,
		wpBase:     wpBase,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// parseBase parses a namespace URL and makes sure it ends with a slash so
// relative references resolve beneath it.
func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// BaseURL returns the stories namespace the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}
