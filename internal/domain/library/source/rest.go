package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storyreel/internal/domain/library"
	"storyreel/internal/domain/story"

	"github.com/sirupsen/logrus"
)

// apiStory is the wire shape shared by the index and detail endpoints
type apiStory struct {
	ID        int             `json:"id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	Thumbnail string          `json:"thumbnail"`
	Excerpt   string          `json:"excerpt"`
	Permalink string          `json:"permalink"`
	Date      string          `json:"date"`
	Modified  string          `json:"modified"`
	Featured  bool            `json:"featured"`
	Duration  flexInt         `json:"duration"`
	Pages     json.RawMessage `json:"pages"`
}

// flexInt accepts a JSON number, a numeric string or null
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Keep the default rather than rejecting the whole story
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// ListStories fetches one page of the story index.
func (c *Client) ListStories(ctx context.Context, q library.Query) (*library.Index, error) {
	u := c.base.ResolveReference(&url.URL{Path: "stories"})
	u.RawQuery = q.Values().Encode()

	body, header, err := c.get(ctx, u.String())
	if err != nil {
		return nil, &story.NetworkError{Op: "list stories", Err: err}
	}

	var raw []apiStory
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &story.NetworkError{
			Op:  "list stories",
			Err: fmt.Errorf("%w: failed to parse JSON response: %v", story.ErrMalformed, err),
		}
	}

	index := &library.Index{
		Stories:    make([]story.Entry, 0, len(raw)),
		Total:      headerInt(header, "X-WP-Total", len(raw)),
		TotalPages: headerInt(header, "X-WP-TotalPages", 1),
	}
	for _, s := range raw {
		index.Stories = append(index.Stories, convertEntry(s))
	}

	logrus.WithFields(logrus.Fields{
		"count": len(index.Stories),
		"total": index.Total,
		"pages": index.TotalPages,
	}).Debug("Fetched story index")

	return index, nil
}

// LoadStory fetches a single story including its pages.
func (c *Client) LoadStory(ctx context.Context, id int) (*story.Detail, error) {
	u := c.base.ResolveReference(&url.URL{Path: "stories/" + strconv.Itoa(id)})

	op := fmt.Sprintf("load story %d", id)
	body, _, err := c.get(ctx, u.String())
	if err != nil {
		return nil, &story.NetworkError{Op: op, Err: err}
	}

	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return nil, &story.NetworkError{Op: op, Err: fmt.Errorf("%w: expected a JSON object", story.ErrMalformed)}
	}

	var raw apiStory
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &story.NetworkError{
			Op:  op,
			Err: fmt.Errorf("%w: failed to parse JSON response: %v", story.ErrMalformed, err),
		}
	}
	if raw.ID == 0 {
		raw.ID = id
	}

	detail := &story.Detail{
		Entry:       convertEntry(raw),
		Pages:       convertPages(raw.ID, raw.Pages),
		PagesLoaded: true,
	}

	logrus.WithFields(logrus.Fields{
		"id":    detail.ID,
		"pages": len(detail.Pages),
	}).Debug("Fetched story pages")

	return detail, nil
}

// get performs a paced GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch URL %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, nil, &story.StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.Header, nil
}

// convertEntry converts the wire story to the domain entry
func convertEntry(s apiStory) story.Entry {
	duration := int(s.Duration)
	if duration <= 0 {
		duration = story.DefaultDuration
	}
	return story.Entry{
		ID:          s.ID,
		Title:       strings.TrimSpace(s.Title),
		Slug:        s.Slug,
		Thumbnail:   s.Thumbnail,
		Excerpt:     strings.TrimSpace(s.Excerpt),
		Permalink:   s.Permalink,
		PublishedAt: parseTime(s.Date),
		ModifiedAt:  parseTime(s.Modified),
		Featured:    s.Featured,
		Duration:    duration,
	}
}

// convertPages decodes the pages array leniently: anything that is not an
// array of objects yields no pages, non-string fields are dropped.
func convertPages(id int, raw json.RawMessage) []story.Page {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []story.Page{}
	}

	var items []map[string]any
	if err := json.Unmarshal(trimmed, &items); err != nil {
		logrus.WithError(err).WithField("id", id).Warn("Ignoring malformed pages")
		return []story.Page{}
	}

	pages := make([]story.Page, 0, len(items))
	for _, item := range items {
		pages = append(pages, story.Page{
			Type:  story.PageType(stringField(item, "type")),
			URL:   stringField(item, "url"),
			Title: stringField(item, "title"),
			Text:  stringField(item, "text"),
		})
	}
	return pages
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func headerInt(h http.Header, key string, fallback int) int {
	if v := h.Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
