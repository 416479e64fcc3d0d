package nest

import (
	"context"
	"testing"

	"storyreel/internal/player"
	"storyreel/internal/player/gesture"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCommand(t *testing.T) {
	tests := map[string]gesture.Command{
		"right": gesture.NextPage,
		"l":     gesture.NextPage,
		"left":  gesture.PrevPage,
		"down":  gesture.NextStory,
		"up":    gesture.PrevStory,
		" ":     gesture.TogglePlay,
		"x":     gesture.None,
	}
	for key, want := range tests {
		assert.Equal(t, want, keyCommand(key), key)
	}
}

func newTestView(t *testing.T) (playerView, *player.Engine) {
	t.Helper()
	sn := newTestNest(t)
	engine := sn.Player(player.Settings{ShowProgress: true, ShowControls: true}, nil)
	view := newPlayerView(context.Background(), engine, make(chan player.Event), "")
	view.start = func() error { return sn.startPlayback(engine, nil) }
	return view, engine
}

// step runs cmd and feeds its message back into the view
func step(t *testing.T, m playerView, cmd tea.Cmd) playerView {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(playerView)
}

func TestViewShowsCurrentPage(t *testing.T) {
	view, _ := newTestView(t)
	require.NoError(t, view.start())

	next, _ := view.Update(tickMsg{})
	view = next.(playerView)

	out := view.View()
	assert.Contains(t, out, "Morning Brief")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "story 1/2")
	assert.Contains(t, out, "article")
}

func TestViewKeysDriveEngine(t *testing.T) {
	view, engine := newTestView(t)
	require.NoError(t, view.start())

	next, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRight})
	view = step(t, next.(playerView), cmd)
	assert.Equal(t, player.Position{Story: 0, Page: 1}, engine.Position())
	assert.Contains(t, view.View(), "Skyline")

	next, cmd = view.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	view = step(t, next.(playerView), cmd)
	assert.Equal(t, player.StatePaused, engine.State())

	next, cmd = view.Update(tea.KeyMsg{Type: tea.KeyDown})
	step(t, next.(playerView), cmd)
	assert.Equal(t, player.Position{Story: 1, Page: 0}, engine.Position())
}

func TestViewDragSwipes(t *testing.T) {
	view, engine := newTestView(t)
	require.NoError(t, view.start())

	next, _ := view.Update(tea.MouseMsg{X: 40, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	next, cmd := next.(playerView).Update(tea.MouseMsg{X: 30, Y: 11, Action: tea.MouseActionRelease})
	step(t, next.(playerView), cmd)

	assert.Equal(t, 1, engine.Position().Page)
}

func TestViewArticle(t *testing.T) {
	view, engine := newTestView(t)
	require.NoError(t, view.start())

	next, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	view = step(t, next.(playerView), cmd)

	assert.True(t, view.reading)
	assert.Equal(t, player.StatePaused, engine.State())
	assert.Contains(t, view.View(), "First paragraph.")

	next, _ = view.Update(tea.KeyMsg{Type: tea.KeyEsc})
	view = next.(playerView)
	assert.False(t, view.reading)
	assert.Equal(t, player.StatePlaying, engine.State())
}

func TestViewQuitClosesPlayer(t *testing.T) {
	view, engine := newTestView(t)
	require.NoError(t, view.start())

	next, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, player.StateClosed, engine.State())
	assert.Empty(t, next.View())
}

func TestViewQuitsOnClosedEvent(t *testing.T) {
	view, _ := newTestView(t)

	_, cmd := view.Update(eventMsg{Type: player.EventClosed})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestViewShowsFailure(t *testing.T) {
	sn, err := NewStoryNest(testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)
	defer sn.Shutdown()

	engine := sn.Player(player.Settings{}, nil)
	view := newPlayerView(context.Background(), engine, make(chan player.Event), "")

	view = step(t, view, func() tea.Msg { return opDoneMsg{err: sn.startPlayback(engine, nil)} })
	out := view.View()
	assert.Contains(t, out, "Error loading stories")
	assert.Contains(t, out, "retry")
}

func TestViewQuitsWhenSnapshotClosed(t *testing.T) {
	view, engine := newTestView(t)

	// nothing shown yet, a closed player keeps the view up
	next, cmd := view.Update(tickMsg{})
	view = next.(playerView)
	require.NotNil(t, cmd)
	assert.False(t, view.quitting)

	require.NoError(t, view.start())
	next, _ = view.Update(tickMsg{})
	view = next.(playerView)
	assert.True(t, view.shown)

	// the closed event never reaches the view
	engine.Close()
	next, cmd = view.Update(tickMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, next.(playerView).quitting)
}
