package story

import "time"

// DefaultDuration is the per-page duration used when a story does not carry one.
const DefaultDuration = 5

// PageType tags the content of a single page
type PageType string

const (
	PageImage PageType = "image"
	PageText  PageType = "text"
	PageVideo PageType = "video"

	// PageNoContent is synthesised for stories without pages, it never comes off the wire
	PageNoContent PageType = "no-content"
)

// Entry is a story as listed by the index endpoint
type Entry struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Thumbnail   string    `json:"thumbnail"`
	Excerpt     string    `json:"excerpt"`
	Permalink   string    `json:"permalink"`
	PublishedAt time.Time `json:"date"`
	ModifiedAt  time.Time `json:"modified"`
	Featured    bool      `json:"featured"`
	Duration    int       `json:"duration"`
}

// PageDuration returns how long each page of the story stays on screen.
func (e Entry) PageDuration() time.Duration {
	d := e.Duration
	if d <= 0 {
		d = DefaultDuration
	}
	return time.Duration(d) * time.Second
}

// Page is one content unit within a story
type Page struct {
	Type  PageType `json:"type"`
	URL   string   `json:"url,omitempty"`
	Title string   `json:"title,omitempty"`
	Text  string   `json:"text,omitempty"`
}

// Supported reports whether the page type has a renderer.
func (p Page) Supported() bool {
	switch p.Type {
	case PageImage, PageText, PageVideo, PageNoContent:
		return true
	}
	return false
}

// Detail is an Entry together with its lazily loaded pages
type Detail struct {
	Entry
	Pages       []Page `json:"pages"`
	PagesLoaded bool   `json:"-"`
}

// DisplayPages returns the pages a player should show. A story without pages
// yields a single no-content page.
func (d *Detail) DisplayPages() []Page {
	if len(d.Pages) == 0 {
		return []Page{{Type: PageNoContent, Title: d.Title, Text: "No content available"}}
	}
	return d.Pages
}

// Article is the long-form post behind a story
type Article struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	Text  string `json:"text"`
}
