package player

import (
	"time"

	"storyreel/internal/domain/story"
)

// State is the display state of the player
type State int

const (
	StateClosed State = iota
	StateOpening
	StatePlaying
	StatePaused
	StateError
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	}
	return "unknown"
}

// Open reports whether the player is showing a story.
func (s State) Open() bool {
	return s == StatePlaying || s == StatePaused
}

// Position is the current story and page
type Position struct {
	Story int
	Page  int
}

// Settings are supplied by the host and never change
type Settings struct {
	DeepLink     bool
	AutoClose    time.Duration // 0 disables closing after the last story
	ShowProgress bool
	ShowControls bool
}

// DeepLinkParam is the query parameter carrying the current story slug
const DeepLinkParam = "story"

const (
	msgIndexError = "Error loading stories. Please try again."
	msgPagesError = "Error loading story pages. Please try again."
	msgEmpty      = "No stories available."
)

// EventType names an outbound notification
type EventType string

const (
	EventOpened  EventType = "opened"
	EventClosed  EventType = "closed"
	EventChanged EventType = "changed"
	EventError   EventType = "error"
)

// Event is delivered to subscribers after the state it describes is in place
type Event struct {
	Type       EventType
	StoryIndex int
	PageIndex  int
	State      State
	Message    string
}

// Snapshot is a consistent copy of everything a renderer needs
type Snapshot struct {
	State    State
	Position Position
	Playing  bool
	Loading  bool
	Message  string
	Settings Settings

	// Stories is the cached index in display order
	Stories []story.Entry

	// Story is the current story, zero when nothing is selected
	Story story.Detail

	// Pages holds the displayable pages of Story, nil until they are loaded
	Pages []story.Page

	PageStarted  time.Time
	PageDuration time.Duration
	AutoClosing  bool
}

// Page returns the page under the cursor.
func (s Snapshot) Page() (story.Page, bool) {
	if s.Position.Page < 0 || s.Position.Page >= len(s.Pages) {
		return story.Page{}, false
	}
	return s.Pages[s.Position.Page], true
}

// Progress returns how far the autoplay timer has run for the current page, in [0, 1].
func (s Snapshot) Progress(now time.Time) float64 {
	if !s.Playing || s.PageDuration <= 0 || s.PageStarted.IsZero() {
		return 0
	}
	p := float64(now.Sub(s.PageStarted)) / float64(s.PageDuration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
