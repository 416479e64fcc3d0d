package nest

import (
	"context"
	"strings"
	"sync"

	"storyreel/internal/domain/story"
	"storyreel/internal/player"
	"storyreel/internal/story/tts"

	"github.com/sirupsen/logrus"
)

// Narrator reads text pages aloud while the player shows them. It follows the
// engine through events: a new page interrupts the current speech, pausing the
// player pauses the voice and closing it stops the voice.
type Narrator struct {
	engine *player.Engine
	tts    tts.Engine
	log    *logrus.Entry

	ctx         context.Context
	cancelAll   context.CancelFunc
	unsubscribe func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	current player.Position
	active  bool
	paused  bool
}

// NewNarrator attaches a narrator to engine. Call Stop to detach it.
func NewNarrator(engine *player.Engine, speech tts.Engine) *Narrator {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Narrator{
		engine:    engine,
		tts:       speech,
		log:       logrus.WithField("component", "narrator"),
		ctx:       ctx,
		cancelAll: cancel,
	}
	n.unsubscribe = engine.Subscribe(n.handle)
	return n
}

func (n *Narrator) handle(ev player.Event) {
	switch ev.Type {
	case player.EventClosed, player.EventError:
		n.mu.Lock()
		n.stopLocked()
		n.active = false
		n.mu.Unlock()
		return
	}

	s := n.engine.Snapshot()

	n.mu.Lock()
	defer n.mu.Unlock()

	if !s.State.Open() || s.Pages == nil {
		return
	}

	if n.active && s.Position == n.current {
		n.syncPauseLocked(s.State == player.StatePaused)
		return
	}

	n.stopLocked()
	n.active = true
	n.current = s.Position
	n.paused = false

	page, ok := s.Page()
	if !ok {
		return
	}
	text := narration(page)
	if text == "" {
		return
	}

	if c, ok := n.tts.(tts.CacheableEngine); ok {
		c.SetStoryContext(s.Story.Slug)
	}
	n.sayLocked(text)
	if s.State == player.StatePaused {
		n.syncPauseLocked(true)
	}
}

// narration returns what should be read for a page, empty for pages without text
func narration(p story.Page) string {
	if p.Type != story.PageText {
		return ""
	}
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(p.Title); t != "" {
		parts = append(parts, t)
	}
	if t := strings.TrimSpace(p.Text); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, ". ")
}

// sayLocked starts speaking text once the previous utterance has wound down
func (n *Narrator) sayLocked(text string) {
	ctx, cancel := context.WithCancel(n.ctx)
	prev := n.done
	done := make(chan struct{})
	n.cancel, n.done = cancel, done

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		if ctx.Err() != nil {
			return
		}
		if err := n.tts.Speak(ctx, text); err != nil && ctx.Err() == nil {
			n.log.WithError(err).Warn("Narration failed")
		}
	}()
}

func (n *Narrator) stopLocked() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	n.cancel = nil
	if err := n.tts.Stop(); err != nil {
		n.log.WithError(err).Debug("Failed to stop speech")
	}
}

func (n *Narrator) syncPauseLocked(paused bool) {
	if paused == n.paused {
		return
	}
	n.paused = paused

	var err error
	if paused {
		err = n.tts.Pause()
	} else {
		err = n.tts.Resume()
	}
	if err != nil {
		n.log.WithError(err).Debug("Failed to toggle speech")
	}
}

// Stop detaches the narrator and waits for the current speech to end.
func (n *Narrator) Stop() {
	n.unsubscribe()

	n.mu.Lock()
	n.stopLocked()
	done := n.done
	n.mu.Unlock()

	n.cancelAll()
	if done != nil {
		<-done
	}
}
