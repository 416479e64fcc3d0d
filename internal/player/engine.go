// Package player implements the story playback engine: a two-level
// stories x pages state machine with autoplay, deep links and lazy page loading.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storyreel/internal/domain/library"
	"storyreel/internal/domain/story"
	"storyreel/internal/player/gesture"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrDestroyed is returned by every operation after Destroy
	ErrDestroyed = errors.New("player destroyed")

	// ErrSuperseded is returned when a close or a newer open overtook the operation
	ErrSuperseded = errors.New("player operation superseded")
)

// failure records what Retry has to run again
type failure int

const (
	failNone failure = iota
	failIndex
	failOpen
	failPages
)

// Config wires an Engine to its collaborators. Only Source is required.
type Config struct {
	Source    Source
	Settings  Settings
	Query     library.Query
	Scheduler Scheduler
	Location  Location
	Logger    *logrus.Entry
}

type listener struct {
	id int
	fn func(Event)
}

// Engine drives playback for one player view. It is safe for concurrent use;
// network calls run outside the lock and are re-validated against the
// generation counter before they touch state.
type Engine struct {
	src      Source
	query    library.Query
	settings Settings
	sched    Scheduler
	loc      Location
	log      *logrus.Entry

	ctx      context.Context
	cancel   context.CancelFunc
	inflight singleflight.Group

	mu      sync.Mutex
	details map[int]*story.Detail
	stories []*story.Detail
	state   State
	pos     Position
	playing bool
	loading bool
	visible bool
	message string

	failed     failure
	failTarget int

	// gen changes on open, close and destroy
	gen uint64
	// nav changes on every story change
	nav uint64

	pageTimer    Timer
	pageSeq      uint64
	pageStarted  timeStamp
	closeTimer   Timer
	closeSeq     uint64
	pendingSlug  string
	listeners    []listener
	nextListener int
	destroyed    bool
}

// New creates an engine. When deep linking is enabled the story parameter is
// read from the location now and resolved by Init.
func New(cfg Config) *Engine {
	if cfg.Scheduler == nil {
		cfg.Scheduler = SystemScheduler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.WithField("component", "player")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		src:      cfg.Source,
		query:    cfg.Query,
		settings: cfg.Settings,
		sched:    cfg.Scheduler,
		loc:      cfg.Location,
		log:      cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		details:  make(map[int]*story.Detail),
		state:    StateClosed,
	}

	if e.settings.DeepLink && e.loc != nil {
		e.pendingSlug = e.loc.Get(DeepLinkParam)
	}
	return e
}

// Settings returns the settings the engine was created with.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Init loads the index and opens the deep-linked story, if any.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.LoadIndex(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	slug := e.pendingSlug
	e.pendingSlug = ""
	e.mu.Unlock()

	if slug == "" {
		return nil
	}
	e.log.WithField("slug", slug).Debug("Resolving deep link")
	if err := e.OpenStoryBySlug(ctx, slug); err != nil && !errors.Is(err, story.ErrNotFound) {
		return err
	}
	return nil
}

// Open shows the story at index, loading the index and the story's pages as
// needed. The index is clamped into range.
func (e *Engine) Open(ctx context.Context, index int) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	e.gen++
	gen := e.gen
	e.stopTimersLocked()
	e.visible = true
	e.state = StateOpening
	e.message = ""
	e.failed = failNone
	e.loading = true
	needIndex := len(e.stories) == 0
	e.unlockAndEmit(e.eventLocked(EventChanged))

	if needIndex {
		if err := e.loadIndex(ctx, gen); err != nil {
			e.mu.Lock()
			if e.gen == gen && e.failed == failIndex {
				e.failed = failOpen
				e.failTarget = index
			}
			e.mu.Unlock()
			return err
		}
	}

	e.mu.Lock()
	if e.destroyed || e.gen != gen {
		e.mu.Unlock()
		return ErrSuperseded
	}
	if len(e.stories) == 0 {
		// loadIndex already moved to Empty
		e.visible = false
		e.loading = false
		e.mu.Unlock()
		return nil
	}
	target := clamp(index, len(e.stories))
	e.pos = Position{Story: target}
	e.nav++
	d := e.stories[target]
	e.mu.Unlock()

	err := e.loadPages(ctx, d)

	e.mu.Lock()
	if e.destroyed || e.gen != gen {
		e.mu.Unlock()
		return ErrSuperseded
	}
	e.loading = false
	if err != nil {
		e.log.WithError(err).WithField("id", d.ID).Warn("Failed to load story pages")
		e.failLocked(failOpen, msgPagesError)
		e.failTarget = target
		e.unlockAndEmit(e.eventLocked(EventError), e.eventLocked(EventChanged))
		return err
	}

	e.state = StatePlaying
	e.playing = true
	e.startPageTimerLocked()
	e.syncLocationLocked()
	e.log.WithFields(logrus.Fields{"index": target, "id": d.ID}).Debug("Opened story")
	opened := e.eventLocked(EventOpened)
	e.unlockAndEmit(opened, e.eventLocked(EventChanged))
	return nil
}

// OpenStory opens the cached story with the given id.
func (e *Engine) OpenStory(ctx context.Context, id int) error {
	e.mu.Lock()
	index := -1
	for i, d := range e.stories {
		if d.ID == id {
			index = i
			break
		}
	}
	e.mu.Unlock()

	if index < 0 {
		return fmt.Errorf("%w: id %d", story.ErrNotFound, id)
	}
	return e.Open(ctx, index)
}

// OpenStoryBySlug opens the cached story with the given slug.
func (e *Engine) OpenStoryBySlug(ctx context.Context, slug string) error {
	e.mu.Lock()
	index := -1
	for i, d := range e.stories {
		if d.Slug == slug {
			index = i
			break
		}
	}
	e.mu.Unlock()

	if index < 0 {
		return fmt.Errorf("%w: slug %q", story.ErrNotFound, slug)
	}
	return e.Open(ctx, index)
}

// Close hides the player. Timers stop, and an open still in progress is abandoned.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.destroyed || !e.visible {
		e.mu.Unlock()
		return
	}
	e.gen++
	e.stopTimersLocked()
	e.visible = false
	e.playing = false
	e.loading = false
	e.state = StateClosed
	e.message = ""
	e.failed = failNone
	if e.settings.DeepLink && e.loc != nil {
		e.loc.Clear(DeepLinkParam)
	}
	e.log.Debug("Closed player")
	e.unlockAndEmit(e.eventLocked(EventClosed))
}

// NextPage advances within the current story, or to the next story from its last page.
func (e *Engine) NextPage(ctx context.Context) error {
	e.mu.Lock()
	if !e.navigableLocked() {
		e.mu.Unlock()
		return nil
	}
	d := e.stories[e.pos.Story]
	if d.PagesLoaded && e.pos.Page < len(d.DisplayPages())-1 {
		e.pos.Page++
		e.pageChangedLocked()
		e.unlockAndEmit(e.eventLocked(EventChanged))
		return nil
	}
	e.mu.Unlock()
	return e.NextStory(ctx)
}

// PreviousPage steps back within the current story, or to the previous story from page 0.
func (e *Engine) PreviousPage(ctx context.Context) error {
	e.mu.Lock()
	if !e.navigableLocked() {
		e.mu.Unlock()
		return nil
	}
	if e.pos.Page > 0 {
		e.pos.Page--
		e.pageChangedLocked()
		e.unlockAndEmit(e.eventLocked(EventChanged))
		return nil
	}
	e.mu.Unlock()
	return e.PreviousStory(ctx)
}

// NextStory moves to the next story. On the last story it schedules an
// automatic close when configured and none is pending, and otherwise does nothing.
func (e *Engine) NextStory(ctx context.Context) error {
	e.mu.Lock()
	if !e.navigableLocked() {
		e.mu.Unlock()
		return nil
	}
	if e.pos.Story >= len(e.stories)-1 {
		// a pending close keeps its deadline
		if e.settings.AutoClose > 0 && e.closeTimer == nil {
			e.scheduleAutoCloseLocked()
		}
		e.mu.Unlock()
		return nil
	}
	return e.gotoStoryLocked(ctx, e.pos.Story+1)
}

// PreviousStory moves to the previous story; a no-op on the first one.
func (e *Engine) PreviousStory(ctx context.Context) error {
	e.mu.Lock()
	if !e.navigableLocked() || e.pos.Story == 0 {
		e.mu.Unlock()
		return nil
	}
	return e.gotoStoryLocked(ctx, e.pos.Story-1)
}

// gotoStoryLocked must be called with the lock held and returns with it released
func (e *Engine) gotoStoryLocked(ctx context.Context, index int) error {
	e.pos = Position{Story: index}
	e.nav++
	nav, gen := e.nav, e.gen
	e.cancelAutoCloseLocked()
	e.cancelPageTimerLocked()
	if e.state == StateError {
		e.state = e.playStateLocked()
		e.message = ""
		e.failed = failNone
	}
	e.syncLocationLocked()

	d := e.stories[index]
	if d.PagesLoaded {
		e.loading = false
		e.startPageTimerLocked()
		e.unlockAndEmit(e.eventLocked(EventChanged))
		return nil
	}

	e.loading = true
	e.unlockAndEmit(e.eventLocked(EventChanged))

	err := e.loadPages(ctx, d)

	e.mu.Lock()
	if e.destroyed || e.gen != gen || e.nav != nav {
		e.mu.Unlock()
		return nil
	}
	e.loading = false
	if err != nil {
		e.log.WithError(err).WithField("id", d.ID).Warn("Failed to load story pages")
		e.failLocked(failPages, msgPagesError)
		e.unlockAndEmit(e.eventLocked(EventError), e.eventLocked(EventChanged))
		return err
	}
	e.startPageTimerLocked()
	e.unlockAndEmit(e.eventLocked(EventChanged))
	return nil
}

// Play starts autoplay from the beginning of the current page's duration.
func (e *Engine) Play() {
	e.mu.Lock()
	if !e.visible || !e.state.Open() {
		e.mu.Unlock()
		return
	}
	e.playing = true
	e.state = StatePlaying
	e.startPageTimerLocked()
	e.unlockAndEmit(e.eventLocked(EventChanged))
}

// Pause stops autoplay.
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.visible || !e.state.Open() {
		e.mu.Unlock()
		return
	}
	e.playing = false
	e.state = StatePaused
	e.cancelPageTimerLocked()
	e.unlockAndEmit(e.eventLocked(EventChanged))
}

// TogglePlayPause flips between Play and Pause.
func (e *Engine) TogglePlayPause() {
	e.mu.Lock()
	playing := e.playing
	e.mu.Unlock()

	if playing {
		e.Pause()
	} else {
		e.Play()
	}
}

// Retry re-runs the load that put the engine into the error state, keeping the
// playback position.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	failed, target := e.failed, e.failTarget
	e.mu.Unlock()

	switch failed {
	case failIndex:
		return e.Init(ctx)
	case failOpen:
		return e.Open(ctx, target)
	case failPages:
		return e.resume(ctx)
	}
	return nil
}

// resume reloads the current story's pages after a failed navigation
func (e *Engine) resume(ctx context.Context) error {
	e.mu.Lock()
	if !e.visible || len(e.stories) == 0 {
		e.mu.Unlock()
		return nil
	}
	gen, nav := e.gen, e.nav
	d := e.stories[e.pos.Story]
	e.loading = true
	e.message = ""
	e.unlockAndEmit(e.eventLocked(EventChanged))

	err := e.loadPages(ctx, d)

	e.mu.Lock()
	if e.destroyed || e.gen != gen || e.nav != nav {
		e.mu.Unlock()
		return ErrSuperseded
	}
	e.loading = false
	if err != nil {
		e.failLocked(failPages, msgPagesError)
		e.unlockAndEmit(e.eventLocked(EventError), e.eventLocked(EventChanged))
		return err
	}
	e.state = e.playStateLocked()
	e.failed = failNone
	e.startPageTimerLocked()
	e.unlockAndEmit(e.eventLocked(EventChanged))
	return nil
}

// Dispatch applies a gesture or keyboard command.
func (e *Engine) Dispatch(ctx context.Context, cmd gesture.Command) error {
	switch cmd {
	case gesture.NextPage:
		return e.NextPage(ctx)
	case gesture.PrevPage:
		return e.PreviousPage(ctx)
	case gesture.NextStory:
		return e.NextStory(ctx)
	case gesture.PrevStory:
		return e.PreviousStory(ctx)
	case gesture.TogglePlay:
		e.TogglePlayPause()
	}
	return nil
}

// Article loads the long-form post of the current story.
func (e *Engine) Article(ctx context.Context) (*story.Article, error) {
	as, ok := e.src.(ArticleSource)
	if !ok {
		return nil, fmt.Errorf("source does not provide articles")
	}

	e.mu.Lock()
	if len(e.stories) == 0 {
		e.mu.Unlock()
		return nil, story.ErrNotFound
	}
	id := e.stories[e.pos.Story].ID
	e.mu.Unlock()

	ctx, done := e.bind(ctx)
	defer done()
	return as.LoadArticle(ctx, id)
}

// Snapshot returns a copy of the observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		State:       e.state,
		Position:    e.pos,
		Playing:     e.playing,
		Loading:     e.loading,
		Message:     e.message,
		Settings:    e.settings,
		Stories:     make([]story.Entry, len(e.stories)),
		AutoClosing: e.closeTimer != nil,
	}
	for i, d := range e.stories {
		s.Stories[i] = d.Entry
	}
	if len(e.stories) > 0 {
		d := e.stories[e.pos.Story]
		s.Story = *d
		if d.PagesLoaded {
			s.Pages = d.DisplayPages()
		}
	}
	if e.pageTimer != nil {
		s.PageStarted = e.pageStarted.at
		s.PageDuration = e.pageStarted.duration
	}
	return s
}

// State returns the current display state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Position returns the current story and page.
func (e *Engine) Position() Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// Subscribe registers fn for every event and returns a function removing it.
func (e *Engine) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return func() {}
	}
	e.nextListener++
	id := e.nextListener
	e.listeners = append(e.listeners, listener{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Destroy cancels timers and in-flight loads and detaches every listener.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.gen++
	e.stopTimersLocked()
	e.listeners = nil
	e.visible = false
	e.playing = false
	e.state = StateClosed
	e.mu.Unlock()

	e.cancel()
}

func (e *Engine) navigableLocked() bool {
	if e.destroyed || !e.visible || len(e.stories) == 0 {
		return false
	}
	return e.state.Open() || (e.state == StateError && e.failed == failPages)
}

func (e *Engine) playStateLocked() State {
	if e.playing {
		return StatePlaying
	}
	return StatePaused
}

func (e *Engine) failLocked(f failure, msg string) {
	e.stopTimersLocked()
	e.loading = false
	e.state = StateError
	e.message = msg
	e.failed = f
}

// pageChangedLocked applies the side effects of moving within a story
func (e *Engine) pageChangedLocked() {
	e.cancelAutoCloseLocked()
	e.startPageTimerLocked()
}

// syncLocationLocked mirrors the current slug into the deep-link parameter
func (e *Engine) syncLocationLocked() {
	if !e.settings.DeepLink || e.loc == nil || len(e.stories) == 0 {
		return
	}
	if slug := e.stories[e.pos.Story].Slug; slug != "" {
		e.loc.Replace(DeepLinkParam, slug)
	}
}

func (e *Engine) eventLocked(t EventType) Event {
	return Event{
		Type:       t,
		StoryIndex: e.pos.Story,
		PageIndex:  e.pos.Page,
		State:      e.state,
		Message:    e.message,
	}
}

// unlockAndEmit releases the lock, then delivers events so listeners may call
// back into the engine.
func (e *Engine) unlockAndEmit(events ...Event) {
	listeners := make([]listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			l.fn(ev)
		}
	}
}

// bind ties ctx to the engine lifetime
func (e *Engine) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = e.ctx
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
