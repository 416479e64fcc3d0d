// Package gesture turns raw drag deltas into player commands.
package gesture

import "math"

// Command is a navigation request understood by the player
type Command int

const (
	None Command = iota
	PrevPage
	NextPage
	PrevStory
	NextStory
	TogglePlay
)

// DefaultThreshold is the drag distance, in pixels or cells, that counts as a swipe
const DefaultThreshold = 50

// tapTolerance is the largest movement still treated as a tap
const tapTolerance = 10

func (c Command) String() string {
	switch c {
	case PrevPage:
		return "prev-page"
	case NextPage:
		return "next-page"
	case PrevStory:
		return "prev-story"
	case NextStory:
		return "next-story"
	case TogglePlay:
		return "toggle-play"
	}
	return "none"
}

// Map classifies a drag. Horizontal movement wins when it dominates and
// passes the threshold: dragging left advances a page. Otherwise vertical
// movement past the threshold changes story, dragging down advances. A
// movement within the tap tolerance toggles playback.
func Map(dx, dy, threshold float64) Command {
	ax, ay := math.Abs(dx), math.Abs(dy)

	switch {
	case ax > ay && ax > threshold:
		if dx > 0 {
			return PrevPage
		}
		return NextPage
	case ay > threshold:
		if dy > 0 {
			return NextStory
		}
		return PrevStory
	case ax < tapTolerance && ay < tapTolerance:
		return TogglePlay
	}
	return None
}
