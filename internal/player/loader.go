package player

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"storyreel/internal/domain/library"
	"storyreel/internal/domain/story"

	"github.com/sirupsen/logrus"
)

// Source provides the story index and per-story pages
type Source interface {
	ListStories(ctx context.Context, q library.Query) (*library.Index, error)
	LoadStory(ctx context.Context, id int) (*story.Detail, error)
}

// ArticleSource is implemented by sources that can return the full post
type ArticleSource interface {
	LoadArticle(ctx context.Context, id int) (*story.Article, error)
}

// LoadIndex fetches the story index, replacing the cached one. Pages already
// loaded for stories still present are kept.
func (e *Engine) LoadIndex(ctx context.Context) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	gen := e.gen
	e.mu.Unlock()

	return e.loadIndex(ctx, gen)
}

func (e *Engine) loadIndex(ctx context.Context, gen uint64) error {
	bound, done := e.bind(ctx)
	index, err := e.src.ListStories(bound, e.query)
	done()

	e.mu.Lock()
	if e.destroyed || e.gen != gen {
		e.mu.Unlock()
		return ErrSuperseded
	}

	if err == nil && index == nil {
		err = fmt.Errorf("%w: empty index response", story.ErrMalformed)
	}
	if err != nil {
		err = asNetwork("load stories", err)
		e.log.WithError(err).Warn("Failed to load stories")
		e.failLocked(failIndex, msgIndexError)
		e.unlockAndEmit(e.eventLocked(EventError), e.eventLocked(EventChanged))
		return err
	}

	moved := e.applyIndexLocked(index)
	e.log.WithField("stories", len(e.stories)).Debug("Loaded story index")

	if len(e.stories) == 0 {
		e.state = StateEmpty
		e.message = msgEmpty
		e.failed = failNone
		e.unlockAndEmit(e.eventLocked(EventChanged))
		return nil
	}

	switch {
	case e.visible && e.state == StateError && e.failed == failIndex:
		e.state = e.playStateLocked()
		e.message = ""
		e.failed = failNone
		e.startPageTimerLocked()
	case !e.visible && (e.state == StateError || e.state == StateEmpty):
		e.state = StateClosed
		e.message = ""
		e.failed = failNone
	}
	if moved && e.navigableLocked() {
		// the story on screen left the index
		return e.gotoStoryLocked(ctx, e.pos.Story)
	}
	e.unlockAndEmit(e.eventLocked(EventChanged))
	return nil
}

// applyIndexLocked swaps in a new index, reusing cached details by id. The
// position follows the current story to its new slot; when that story is gone
// the position is clamped to page 0 and applyIndexLocked reports true.
func (e *Engine) applyIndexLocked(index *library.Index) bool {
	current := -1
	if len(e.stories) > 0 {
		current = e.stories[e.pos.Story].ID
	}

	stories := make([]*story.Detail, 0, len(index.Stories))
	for _, entry := range index.Stories {
		d, ok := e.details[entry.ID]
		if !ok {
			d = &story.Detail{}
			e.details[entry.ID] = d
		}
		loaded, pages, duration := d.PagesLoaded, d.Pages, d.Duration
		d.Entry = entry
		if loaded {
			// the detail endpoint is authoritative for duration
			d.Duration = duration
			d.Pages = pages
		}
		stories = append(stories, d)
	}
	e.stories = stories

	if len(stories) == 0 {
		e.pos = Position{}
		return current >= 0
	}
	for i, d := range stories {
		if d.ID == current {
			e.pos.Story = i
			if d.PagesLoaded {
				e.pos.Page = clamp(e.pos.Page, len(d.DisplayPages()))
			}
			return false
		}
	}
	e.pos = Position{Story: clamp(e.pos.Story, len(stories))}
	return current >= 0
}

// LoadPages loads the pages of one cached story unless they are already loaded.
func (e *Engine) LoadPages(ctx context.Context, id int) error {
	e.mu.Lock()
	d, ok := e.details[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: id %d", story.ErrNotFound, id)
	}
	return e.loadPages(ctx, d)
}

// Invalidate forgets the loaded pages of a story so the next visit fetches them again.
func (e *Engine) Invalidate(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.details[id]; ok {
		d.PagesLoaded = false
	}
}

// loadPages fetches pages at most once per story. Concurrent callers share the
// in-flight request.
func (e *Engine) loadPages(ctx context.Context, d *story.Detail) error {
	e.mu.Lock()
	loaded, id := d.PagesLoaded, d.ID
	e.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := e.inflight.Do(strconv.Itoa(id), func() (any, error) {
		e.mu.Lock()
		loaded := d.PagesLoaded
		e.mu.Unlock()
		if loaded {
			return nil, nil
		}

		ctx, done := e.bind(ctx)
		defer done()

		detail, err := e.src.LoadStory(ctx, id)
		if err == nil && detail == nil {
			err = fmt.Errorf("%w: empty story response", story.ErrMalformed)
		}
		if err != nil {
			return nil, asNetwork(fmt.Sprintf("load story %d", id), err)
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.destroyed {
			return nil, ErrDestroyed
		}
		d.Pages = detail.Pages
		if d.Pages == nil {
			d.Pages = []story.Page{}
		}
		d.Duration = detail.Duration
		if d.Duration <= 0 {
			d.Duration = story.DefaultDuration
		}
		d.PagesLoaded = true
		e.log.WithFields(logrus.Fields{"id": id, "pages": len(d.Pages)}).Debug("Loaded story pages")
		return nil, nil
	})
	return err
}

// asNetwork makes sure every loader failure surfaces as a NetworkError
func asNetwork(op string, err error) error {
	if errors.Is(err, ErrDestroyed) || story.IsNetwork(err) {
		return err
	}
	return &story.NetworkError{Op: op, Err: err}
}
