// Package nest wires the story source, the player engine and narration into
// the storyreel command line.
package nest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"storyreel/internal/cli/scheme/colours"
	"storyreel/internal/config"
	"storyreel/internal/domain/library"
	"storyreel/internal/domain/library/source"
	"storyreel/internal/domain/story"
	"storyreel/internal/player"
	"storyreel/internal/story/tts"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StoryNest main application structure
type StoryNest struct {
	cfg    *config.Config
	client *source.Client

	mu     sync.Mutex
	Tts    tts.Engine
	player *player.Engine
	index  *source.IndexCache

	ctx    context.Context
	Cancel context.CancelFunc
}

func NewStoryNest(cfg *config.Config) (*StoryNest, error) {
	client, err := source.New(source.Options{
		BaseURL:           cfg.API.BaseURL,
		WPBaseURL:         cfg.API.WPBaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StoryNest{
		cfg:    cfg,
		client: client,
		ctx:    ctx,
		Cancel: cancel,
	}, nil
}

// Context is cancelled when the application shuts down.
func (sn *StoryNest) Context() context.Context {
	return sn.ctx
}

// Shutdown stops narration and playback.
func (sn *StoryNest) Shutdown() {
	sn.Cancel()

	sn.mu.Lock()
	defer sn.mu.Unlock()
	if sn.Tts != nil {
		_ = sn.Tts.Stop()
	}
	if sn.player != nil {
		sn.player.Destroy()
	}
}

func (sn *StoryNest) ShowWelcome() {
	fmt.Println()
	colours.Title.Println("🎞  Welcome to StoryReel!")
	fmt.Println()
	colours.Info.Println("📚 Available commands:")
	fmt.Println("  • storyreel list           - Browse the story index")
	fmt.Println("  • storyreel show <story>   - Show the pages of a story")
	fmt.Println("  • storyreel article <story> - Read the full article behind a story")
	fmt.Println("  • storyreel play [story]   - Open the story player")
	fmt.Println("  • storyreel voices         - List narration voices")
	fmt.Println()
	colours.Muted.Printf("Stories from %s\n", sn.client.BaseURL())
}

// Player returns the application's player engine, creating it on first use.
// Later calls return the same engine and ignore their arguments.
func (sn *StoryNest) Player(settings player.Settings, loc player.Location) *player.Engine {
	sn.mu.Lock()
	defer sn.mu.Unlock()

	if sn.player == nil {
		sn.player = player.New(player.Config{
			Source:   sn.client,
			Settings: settings,
			Query:    sn.indexQuery(),
			Location: loc,
		})
	}
	return sn.player
}

func (sn *StoryNest) indexQuery() library.Query {
	return library.Query{
		Featured: sn.cfg.Index.Featured,
		Search:   sn.cfg.Index.Search,
		PerPage:  sn.cfg.Index.PerPage,
	}
}

// narrator returns the configured speech engine, creating it on first use
func (sn *StoryNest) narrator() (tts.Engine, error) {
	sn.mu.Lock()
	defer sn.mu.Unlock()

	if sn.Tts != nil {
		return sn.Tts, nil
	}

	cacheDir := sn.cfg.TTS.CachePath
	if cacheDir == "" {
		cacheDir = filepath.Join(getCacheDirectory(), "tts")
	}
	engine, err := tts.NewEngine(tts.Config{
		Type:     sn.cfg.TTS.Type,
		Speed:    sn.cfg.TTS.Speed,
		Volume:   sn.cfg.TTS.Volume,
		Voice:    sn.cfg.TTS.Voice,
		CacheDir: cacheDir,
	})
	if err != nil {
		return nil, err
	}
	sn.Tts = engine
	return engine, nil
}

// indexCache returns the on-disk index cache used by the list command
func (sn *StoryNest) indexCache() *source.IndexCache {
	sn.mu.Lock()
	defer sn.mu.Unlock()

	if sn.index == nil {
		dir := sn.cfg.Index.CachePath
		if dir == "" {
			dir = filepath.Join(getCacheDirectory(), "index")
		}
		sn.index = source.NewIndexCache(sn.client, dir, sn.cfg.Index.CacheMaxAge)
	}
	return sn.index
}

func (sn *StoryNest) ListStories(cmd *cobra.Command, args []string) error {
	cache := sn.indexCache()
	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		if err := cache.Clear(); err != nil {
			return fmt.Errorf("failed to clear index cache: %w", err)
		}
	}

	q := sn.indexQuery()
	if cmd.Flags().Changed("featured") {
		q.Featured, _ = cmd.Flags().GetBool("featured")
	}
	if cmd.Flags().Changed("search") {
		q.Search, _ = cmd.Flags().GetString("search")
	}
	if cmd.Flags().Changed("per-page") {
		q.PerPage, _ = cmd.Flags().GetInt("per-page")
	}
	q.Page, _ = cmd.Flags().GetInt("page")

	index, err := cache.ListStories(sn.ctx, q)
	if err != nil {
		return err
	}

	fmt.Println()
	colours.Title.Println("📚 Stories")
	fmt.Println()

	if len(index.Stories) == 0 {
		colours.Warning.Println("🔍 No stories found matching your criteria.")
		return nil
	}

	for i, s := range index.Stories {
		fmt.Printf("  %d. ", i+1)
		colours.Title.Printf("%s", s.Title)
		if s.Featured {
			colours.Featured.Printf(" ★ featured")
		}
		fmt.Println()
		colours.Muted.Printf("     %s · id %d · %ds per page", s.Slug, s.ID, int(s.PageDuration().Seconds()))
		if !s.PublishedAt.IsZero() {
			colours.Muted.Printf(" · %s", s.PublishedAt.Format("2006-01-02"))
		}
		fmt.Println()
		if s.Excerpt != "" {
			fmt.Printf("     💡 %s\n", s.Excerpt)
		}
		fmt.Println()
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	colours.Success.Printf("✨ Page %d of %d, %d stories in total\n", page, index.TotalPages, index.Total)
	return nil
}

func (sn *StoryNest) ShowStory(cmd *cobra.Command, args []string) error {
	entry, err := sn.findStory(args[0])
	if err != nil {
		return err
	}

	detail, err := sn.client.LoadStory(sn.ctx, entry.ID)
	if err != nil {
		return err
	}

	fmt.Println()
	colours.Title.Printf("📖 %s\n", detail.Title)
	if detail.Permalink != "" {
		colours.Muted.Println(detail.Permalink)
	}
	fmt.Println()

	for i, p := range detail.DisplayPages() {
		colours.Info.Printf("  %d. [%s] ", i+1, p.Type)
		switch p.Type {
		case story.PageText, story.PageNoContent:
			fmt.Println(p.Title)
			if p.Text != "" {
				fmt.Printf("     %s\n", p.Text)
			}
		default:
			fmt.Println(p.URL)
			if p.Title != "" {
				fmt.Printf("     %s\n", p.Title)
			}
		}
	}
	fmt.Println()
	colours.Muted.Printf("%d pages, %s each\n", len(detail.Pages), detail.PageDuration())
	return nil
}

func (sn *StoryNest) ShowArticle(cmd *cobra.Command, args []string) error {
	entry, err := sn.findStory(args[0])
	if err != nil {
		return err
	}

	article, err := sn.client.LoadArticle(sn.ctx, entry.ID)
	if err != nil {
		return err
	}

	fmt.Println()
	colours.Title.Printf("📰 %s\n", article.Title)
	fmt.Println()
	fmt.Println(article.Text)
	return nil
}

func (sn *StoryNest) Voices(cmd *cobra.Command, args []string) error {
	engine, err := sn.narrator()
	if errors.Is(err, tts.ErrDisabled) {
		colours.Warning.Println("🔇 Narration is disabled, set tts.type to enable it.")
		return nil
	}
	if err != nil {
		return err
	}

	voices, err := engine.Voices(sn.ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	colours.Title.Println("🎤 Voices")
	for _, v := range voices {
		fmt.Printf("  • %s\n", v)
	}

	cacheable, ok := engine.(tts.CacheableEngine)
	if !ok {
		return nil
	}
	if clearCache, _ := cmd.Flags().GetBool("clear-cache"); clearCache {
		if err := cacheable.ClearCache(); err != nil {
			return fmt.Errorf("failed to clear audio cache: %w", err)
		}
		colours.Success.Println("🧹 Audio cache cleared")
	}
	stats, err := cacheable.CacheStats()
	if err == nil {
		colours.Muted.Printf("Audio cache: %d files, %.1f MB in %s\n", stats.Files, stats.SizeMB, stats.Directory)
	}
	return nil
}

// Play opens the interactive player. A story given as argument, or deep
// linked through --link, is opened first; otherwise playback starts at the
// first story.
func (sn *StoryNest) Play(cmd *cobra.Command, args []string) error {
	link, _ := cmd.Flags().GetString("link")
	noDeepLink, _ := cmd.Flags().GetBool("no-deep-link")
	narrate, _ := cmd.Flags().GetBool("narrate")

	autoClose := sn.cfg.Player.AutoCloseDelay()
	if cmd.Flags().Changed("auto-close") {
		autoClose, _ = cmd.Flags().GetDuration("auto-close")
		if autoClose > config.MaxAutoClose {
			autoClose = config.MaxAutoClose
		}
	}

	settings := player.Settings{
		DeepLink:     sn.cfg.Player.DeepLink && !noDeepLink,
		AutoClose:    autoClose,
		ShowProgress: sn.cfg.Player.ShowProgress,
		ShowControls: sn.cfg.Player.ShowControls,
	}

	if link == "" {
		link = sn.cfg.Player.ShareURL
	}
	var (
		loc   player.Location = player.NewMemoryLocation(nil)
		share func() string
	)
	if link != "" {
		u, err := player.NewURLLocation(link)
		if err != nil {
			return err
		}
		loc, share = u, u.String
	}

	engine := sn.Player(settings, loc)
	defer engine.Destroy()

	if narrate || sn.cfg.Player.Narrate {
		speech, err := sn.narrator()
		switch {
		case errors.Is(err, tts.ErrDisabled):
			logrus.Info("Narration requested but tts.type is none")
		case err != nil:
			logrus.WithError(err).Warn("Narration unavailable")
		default:
			if voice, _ := cmd.Flags().GetString("voice"); voice != "" {
				if err := speech.SetVoice(voice); err != nil {
					return err
				}
			}
			n := NewNarrator(engine, speech)
			defer n.Stop()
		}
	}

	events := make(chan player.Event, 64)
	unsubscribe := engine.Subscribe(func(ev player.Event) {
		select {
		case events <- ev:
		default:
			// the view re-reads the snapshot on every tick
		}
	})
	defer unsubscribe()

	view := newPlayerView(sn.ctx, engine, events, sn.cfg.Player.AccentColor)
	view.share = share
	view.start = func() error { return sn.startPlayback(engine, args) }

	program := tea.NewProgram(view, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(sn.ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("player view: %w", err)
	}
	return nil
}

// startPlayback loads the index, resolves the deep link and opens the
// requested story
func (sn *StoryNest) startPlayback(engine *player.Engine, args []string) error {
	if err := engine.Init(sn.ctx); err != nil {
		return err
	}

	if len(args) > 0 {
		index := storyIndex(engine.Snapshot().Stories, args[0])
		if index < 0 {
			return fmt.Errorf("%w: %q", story.ErrNotFound, args[0])
		}
		return engine.Open(sn.ctx, index)
	}

	if engine.State() == player.StateClosed {
		return engine.Open(sn.ctx, 0)
	}
	return nil
}

// findStory resolves an id or slug against the configured index
func (sn *StoryNest) findStory(ref string) (story.Entry, error) {
	index, err := sn.client.ListStories(sn.ctx, library.Query{
		Featured: sn.cfg.Index.Featured,
		Search:   sn.cfg.Index.Search,
		PerPage:  library.MaxPerPage,
	})
	if err != nil {
		return story.Entry{}, err
	}

	i := storyIndex(index.Stories, ref)
	if i < 0 {
		return story.Entry{}, fmt.Errorf("%w: %q", story.ErrNotFound, ref)
	}
	return index.Stories[i], nil
}

// storyIndex finds a story by numeric id or by slug. Slugs are normalised,
// so "My Story" matches "my-story".
func storyIndex(stories []story.Entry, ref string) int {
	ref = strings.TrimSpace(ref)
	ix := &library.Index{Stories: stories}

	if id, err := strconv.Atoi(ref); err == nil {
		if i := ix.ByID(id); i >= 0 {
			return i
		}
	}
	if i := ix.BySlug(ref); i >= 0 {
		return i
	}
	return ix.BySlug(slug.Make(ref))
}

// getCacheDirectory returns the appropriate cache directory
func getCacheDirectory() string {
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "storyreel")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".storyreel", "cache")
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, "cache")
	}

	return "cache"
}

// OpenLog sends log output to path so the player view keeps the terminal.
// The returned function restores stderr.
func OpenLog(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logrus.SetOutput(f)
	logrus.WithField("started", time.Now().Format(time.RFC3339)).Debug("Player session")
	return func() {
		logrus.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
