package nest

import (
	"strings"
	"testing"
	"time"

	"storyreel/internal/domain/story"
	"storyreel/internal/player"

	"github.com/stretchr/testify/assert"
)

func TestSegments(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 0.5, 0}, segments(4, 2, 0.5))
	assert.Equal(t, []float64{0}, segments(1, 0, 0))
	assert.Empty(t, segments(0, 0, 0))
}

func TestProgressBar(t *testing.T) {
	st := newStyles("")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := player.Snapshot{
		Playing:      true,
		Position:     player.Position{Page: 1},
		Pages:        make([]story.Page, 3),
		PageStarted:  start,
		PageDuration: 4 * time.Second,
	}

	bar := st.progress(s, start.Add(2*time.Second), 32)
	assert.Equal(t, 3, len(strings.Fields(bar)))
	assert.Equal(t, 10+5, strings.Count(bar, "━"))
	assert.Equal(t, 5+10, strings.Count(bar, "─"))

	assert.Empty(t, st.progress(player.Snapshot{}, start, 32))
}

func TestRenderPage(t *testing.T) {
	st := newStyles("#FF0000")

	tests := []struct {
		name string
		page story.Page
		want []string
	}{
		{
			name: "text",
			page: story.Page{Type: story.PageText, Title: "Hello", Text: "World"},
			want: []string{"Hello", "World"},
		},
		{
			name: "image",
			page: story.Page{Type: story.PageImage, URL: "https://cdn.example.com/a.jpg", Title: "Skyline"},
			want: []string{"Image", "Skyline", "a.jpg"},
		},
		{
			name: "video",
			page: story.Page{Type: story.PageVideo, URL: "https://cdn.example.com/v.mp4"},
			want: []string{"Video", "v.mp4"},
		},
		{
			name: "no content",
			page: story.Page{Type: story.PageNoContent, Title: "Empty", Text: "No content available"},
			want: []string{"Empty", "No content available"},
		},
		{
			name: "unsupported",
			page: story.Page{Type: "poll"},
			want: []string{"Unsupported page type: poll"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := st.page(tt.page, 120)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestControls(t *testing.T) {
	st := newStyles("")

	out := st.controls(player.Snapshot{Playing: true})
	assert.Contains(t, out, "pause")
	assert.NotContains(t, out, "closing soon")

	out = st.controls(player.Snapshot{AutoClosing: true})
	assert.Contains(t, out, "play")
	assert.Contains(t, out, "closing soon")
}

func TestHeader(t *testing.T) {
	st := newStyles("")
	s := player.Snapshot{
		Stories:  make([]story.Entry, 3),
		Story:    story.Detail{Entry: story.Entry{Title: "Morning Brief", Featured: true}},
		Pages:    make([]story.Page, 2),
		Position: player.Position{Story: 1, Page: 1},
	}

	out := st.header(s)
	assert.Contains(t, out, "Morning Brief")
	assert.Contains(t, out, "featured")
	assert.Contains(t, out, "story 2/3")
	assert.Contains(t, out, "page 2/2")
}
