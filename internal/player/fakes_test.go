package player

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"storyreel/internal/domain/library"
	"storyreel/internal/domain/story"
)

// manualScheduler only moves time when told to
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, at: s.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves the clock forward, firing due timers in order. Callbacks run
// without the scheduler lock held, exactly like time.AfterFunc.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var due []*manualTimer
		for _, t := range s.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		s.now = next.at
		s.mu.Unlock()

		next.f()
	}
}

// Active counts timers that are still pending.
func (s *manualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var errOffline = errors.New("connection refused")

// fakeSource serves canned stories and counts requests
type fakeSource struct {
	mu        sync.Mutex
	entries   []story.Entry
	pages     map[int][]story.Page
	listErr   error
	storyErr  map[int]error
	listCalls int
	calls     map[int]int

	// gate, when set, blocks LoadStory until it is closed
	gate    chan struct{}
	started chan int
}

func newFakeSource(details ...story.Detail) *fakeSource {
	f := &fakeSource{
		pages:    make(map[int][]story.Page),
		storyErr: make(map[int]error),
		calls:    make(map[int]int),
	}
	for _, d := range details {
		f.entries = append(f.entries, d.Entry)
		f.pages[d.ID] = d.Pages
	}
	return f
}

func (f *fakeSource) ListStories(ctx context.Context, q library.Query) (*library.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	entries := make([]story.Entry, len(f.entries))
	copy(entries, f.entries)
	return &library.Index{Stories: entries, Total: len(entries), TotalPages: 1}, nil
}

func (f *fakeSource) LoadStory(ctx context.Context, id int) (*story.Detail, error) {
	f.mu.Lock()
	f.calls[id]++
	gate, started := f.gate, f.started
	err := f.storyErr[id]
	f.mu.Unlock()

	if started != nil {
		started <- id
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			return &story.Detail{Entry: e, Pages: f.pages[id], PagesLoaded: true}, nil
		}
	}
	return nil, &story.StatusError{Code: 404, URL: "stories"}
}

func (f *fakeSource) LoadArticle(ctx context.Context, id int) (*story.Article, error) {
	return &story.Article{ID: id, Title: "Article", Text: "Body"}, nil
}

func (f *fakeSource) storyCalls(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeSource) setStoryErr(id int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.storyErr, id)
		return
	}
	f.storyErr[id] = err
}

func (f *fakeSource) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// setOrder makes the index list only the given stories, in that order
func (f *fakeSource) setOrder(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]story.Entry, 0, len(ids))
	for _, id := range ids {
		for _, e := range f.entries {
			if e.ID == id {
				entries = append(entries, e)
			}
		}
	}
	f.entries = entries
}

func detail(id int, slug string, duration int, pages ...story.Page) story.Detail {
	return story.Detail{
		Entry: story.Entry{ID: id, Title: slug, Slug: slug, Duration: duration},
		Pages: pages,
	}
}

func textPage(title string) story.Page {
	return story.Page{Type: story.PageText, Title: title}
}

// recorder collects events in delivery order
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) of(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
