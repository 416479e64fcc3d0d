package nest

import (
	"fmt"
	"strings"
	"time"

	"storyreel/internal/domain/story"
	"storyreel/internal/player"

	"github.com/charmbracelet/lipgloss"
)

const defaultAccent = "#3498DB"

// styles holds the lipgloss styles of the player view
type styles struct {
	title    lipgloss.Style
	muted    lipgloss.Style
	badge    lipgloss.Style
	body     lipgloss.Style
	media    lipgloss.Style
	errorBox lipgloss.Style
	keys     lipgloss.Style
	segDone  lipgloss.Style
	segTodo  lipgloss.Style
}

func newStyles(accent string) styles {
	if accent == "" {
		accent = defaultAccent
	}
	a := lipgloss.Color(accent)
	gray := lipgloss.Color("241")

	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		muted:    lipgloss.NewStyle().Foreground(gray),
		badge:    lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(a).Padding(0, 1),
		body:     lipgloss.NewStyle().Padding(1, 2),
		media:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(a).Padding(1, 2),
		errorBox: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("196")).Padding(1, 2),
		keys:     lipgloss.NewStyle().Foreground(a).Bold(true),
		segDone:  lipgloss.NewStyle().Foreground(a),
		segTodo:  lipgloss.NewStyle().Foreground(gray),
	}
}

// segments returns the fill ratio of every progress segment: pages before the
// current one are full, the current one follows the autoplay timer.
func segments(pages, current int, progress float64) []float64 {
	fill := make([]float64, pages)
	for i := range fill {
		switch {
		case i < current:
			fill[i] = 1
		case i == current:
			fill[i] = progress
		}
	}
	return fill
}

func (st styles) progress(s player.Snapshot, now time.Time, width int) string {
	n := len(s.Pages)
	if n == 0 || width <= 0 {
		return ""
	}

	seg := (width - (n - 1)) / n
	if seg < 1 {
		seg = 1
	}

	parts := make([]string, 0, n)
	for _, f := range segments(n, s.Position.Page, s.Progress(now)) {
		done := int(f * float64(seg))
		parts = append(parts,
			st.segDone.Render(strings.Repeat("━", done))+
				st.segTodo.Render(strings.Repeat("─", seg-done)))
	}
	return strings.Join(parts, " ")
}

func (st styles) header(s player.Snapshot) string {
	var b strings.Builder
	b.WriteString(st.title.Render(s.Story.Title))
	if s.Story.Featured {
		b.WriteString(" " + st.badge.Render("featured"))
	}
	b.WriteString("\n")
	b.WriteString(st.muted.Render(fmt.Sprintf("story %d/%d", s.Position.Story+1, len(s.Stories))))
	if n := len(s.Pages); n > 0 {
		b.WriteString(st.muted.Render(fmt.Sprintf(" · page %d/%d", s.Position.Page+1, n)))
	}
	return b.String()
}

// page renders one story page for a terminal of the given width
func (st styles) page(p story.Page, width int) string {
	inner := width - 6
	if inner < 20 {
		inner = 20
	}

	switch p.Type {
	case story.PageText:
		var b strings.Builder
		if p.Title != "" {
			b.WriteString(st.title.Render(p.Title) + "\n\n")
		}
		b.WriteString(p.Text)
		return st.body.Width(inner).Render(b.String())

	case story.PageImage, story.PageVideo:
		label := "🖼  Image"
		if p.Type == story.PageVideo {
			label = "🎬 Video"
		}
		lines := []string{st.title.Render(label)}
		if p.Title != "" {
			lines = append(lines, p.Title)
		}
		lines = append(lines, st.muted.Render(p.URL))
		return st.media.Width(inner).Render(strings.Join(lines, "\n"))

	case story.PageNoContent:
		return st.body.Width(inner).Render(st.title.Render(p.Title) + "\n\n" + st.muted.Render(p.Text))
	}

	return st.body.Width(inner).Render(st.muted.Render(fmt.Sprintf("Unsupported page type: %s", p.Type)))
}

func (st styles) controls(s player.Snapshot) string {
	play := "pause"
	if !s.Playing {
		play = "play"
	}
	hints := []string{
		st.keys.Render("←/→") + " page",
		st.keys.Render("↑/↓") + " story",
		st.keys.Render("space") + " " + play,
		st.keys.Render("a") + " article",
		st.keys.Render("q") + " close",
	}
	line := strings.Join(hints, "  ")
	if s.AutoClosing {
		line += "  " + st.muted.Render("closing soon…")
	}
	return line
}

func (st styles) failure(s player.Snapshot, width int) string {
	inner := width - 6
	if inner < 20 {
		inner = 20
	}
	msg := s.Message
	if s.State == player.StateError {
		msg += "\n\n" + st.keys.Render("r") + " retry  " + st.keys.Render("q") + " close"
	}
	return st.errorBox.Width(inner).Render(msg)
}
