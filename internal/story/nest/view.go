package nest

import (
	"context"
	"strings"
	"time"

	"storyreel/internal/domain/story"
	"storyreel/internal/player"
	"storyreel/internal/player/gesture"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// dragThreshold is the swipe distance in terminal cells
const dragThreshold = 3

const refreshInterval = 200 * time.Millisecond

// eventMsg carries an engine event into the update loop
type eventMsg player.Event

// opDoneMsg is sent when a navigation command finished
type opDoneMsg struct{ err error }

type articleMsg struct {
	article *story.Article
	err     error
}

type tickMsg time.Time

// playerView is the Bubble Tea model of the story player. It never mutates
// playback state itself, every key goes through the engine.
type playerView struct {
	ctx    context.Context
	engine *player.Engine
	events <-chan player.Event
	start  func() error
	share  func() string

	styles  styles
	spinner spinner.Model
	article viewport.Model
	reading bool

	snap   player.Snapshot
	shown  bool
	err    error
	width  int
	height int

	dragging bool
	dragX    int
	dragY    int
	quitting bool
	now      func() time.Time
}

func newPlayerView(ctx context.Context, engine *player.Engine, events <-chan player.Event, accent string) playerView {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return playerView{
		ctx:     ctx,
		engine:  engine,
		events:  events,
		styles:  newStyles(accent),
		spinner: s,
		article: viewport.New(80, 20),
		snap:    engine.Snapshot(),
		width:   80,
		height:  24,
		now:     time.Now,
	}
}

func (m playerView) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, waitForEvent(m.events), tick()}
	if m.start != nil {
		start := m.start
		cmds = append(cmds, func() tea.Msg { return opDoneMsg{err: start()} })
	}
	return tea.Batch(cmds...)
}

func waitForEvent(events <-chan player.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// refresh takes a new snapshot and reports whether the player closed after
// having shown a story.
func (m *playerView) refresh() bool {
	m.snap = m.engine.Snapshot()
	if m.snap.State.Open() {
		m.shown = true
	}
	return m.shown && m.snap.State == player.StateClosed
}

func (m playerView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.article.Width = msg.Width - 4
		m.article.Height = msg.Height - 6
		return m, nil

	case eventMsg:
		closed := m.refresh()
		if closed || msg.Type == player.EventClosed {
			m.quitting = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case tickMsg:
		// the closed event can be dropped when the event buffer is full
		if m.refresh() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tick()

	case opDoneMsg:
		m.snap = m.engine.Snapshot()
		if msg.err != nil && m.snap.State != player.StateError {
			// state errors are shown from the snapshot
			m.err = msg.err
		}
		return m, nil

	case articleMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.engine.Pause()
		m.reading = true
		m.article.SetContent(msg.article.Title + "\n\n" + msg.article.Text)
		m.article.GotoTop()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// keyCommand maps a key to a player command
func keyCommand(key string) gesture.Command {
	switch key {
	case "right", "l":
		return gesture.NextPage
	case "left", "h":
		return gesture.PrevPage
	case "down", "j":
		return gesture.NextStory
	case "up", "k":
		return gesture.PrevStory
	case " ", "p":
		return gesture.TogglePlay
	}
	return gesture.None
}

func (m playerView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	if m.reading {
		switch msg.String() {
		case "esc", "q", "a":
			m.reading = false
			m.engine.Play()
			return m, nil
		}
		var cmd tea.Cmd
		m.article, cmd = m.article.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		m.engine.Close()
		return m, tea.Quit

	case "r":
		return m, m.run(func() error { return m.engine.Retry(m.ctx) })

	case "a":
		return m, m.loadArticle()
	}

	if cmd := keyCommand(msg.String()); cmd != gesture.None {
		return m, m.dispatch(cmd)
	}
	return m, nil
}

func (m playerView) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.reading {
		return m, nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		m.dragging = true
		m.dragX, m.dragY = msg.X, msg.Y
	case tea.MouseActionRelease:
		if !m.dragging {
			return m, nil
		}
		m.dragging = false
		cmd := gesture.Map(float64(msg.X-m.dragX), float64(msg.Y-m.dragY), dragThreshold)
		if cmd != gesture.None {
			return m, m.dispatch(cmd)
		}
	}
	return m, nil
}

func (m playerView) dispatch(cmd gesture.Command) tea.Cmd {
	return m.run(func() error { return m.engine.Dispatch(m.ctx, cmd) })
}

// run performs an engine call off the update loop, it may wait on the network
func (m playerView) run(f func() error) tea.Cmd {
	return func() tea.Msg { return opDoneMsg{err: f()} }
}

func (m playerView) loadArticle() tea.Cmd {
	return func() tea.Msg {
		article, err := m.engine.Article(m.ctx)
		return articleMsg{article: article, err: err}
	}
}

func (m playerView) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	s := m.snap

	if m.reading {
		b.WriteString(m.styles.title.Render(s.Story.Title) + "\n\n")
		b.WriteString(m.article.View() + "\n\n")
		b.WriteString(m.styles.muted.Render("↑/↓ scroll · esc back"))
		return b.String()
	}

	switch {
	case s.State == player.StateError || s.State == player.StateEmpty:
		b.WriteString(m.styles.failure(s, m.width))

	case s.State == player.StateOpening || s.Loading || (s.State.Open() && s.Pages == nil):
		b.WriteString(m.spinner.View() + " Loading story…")

	case s.State.Open():
		if s.Settings.ShowProgress {
			b.WriteString(m.styles.progress(s, m.now(), m.width) + "\n")
		}
		b.WriteString(m.styles.header(s) + "\n")
		if page, ok := s.Page(); ok {
			b.WriteString(m.styles.page(page, m.width) + "\n")
		}
		if s.Settings.ShowControls {
			b.WriteString(m.styles.controls(s) + "\n")
		}

	default:
		b.WriteString(m.spinner.View() + " Loading stories…")
	}

	if m.err != nil {
		b.WriteString("\n" + m.styles.muted.Render("⚠ "+m.err.Error()))
	}
	if m.share != nil {
		if link := m.share(); link != "" {
			b.WriteString("\n" + m.styles.muted.Render("🔗 "+link))
		}
	}
	return b.String()
}
