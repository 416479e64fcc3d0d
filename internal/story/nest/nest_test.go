package nest

import (
	"context"
	"testing"

	"storyreel/internal/domain/story"
	"storyreel/internal/player"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryIndex(t *testing.T) {
	stories := []story.Entry{
		{ID: 10, Slug: "morning-brief"},
		{ID: 42, Slug: "match-report"},
	}

	tests := []struct {
		ref  string
		want int
	}{
		{ref: "42", want: 1},
		{ref: "morning-brief", want: 0},
		{ref: "Match Report", want: 1},
		{ref: "  match-report ", want: 1},
		{ref: "7", want: -1},
		{ref: "weather", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, storyIndex(stories, tt.ref))
		})
	}
}

func TestFindStory(t *testing.T) {
	sn := newTestNest(t)

	entry, err := sn.findStory("Morning Brief")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ID)

	entry, err = sn.findStory("2")
	require.NoError(t, err)
	assert.Equal(t, "match-report", entry.Slug)
	assert.Equal(t, 4, entry.Duration)

	_, err = sn.findStory("missing")
	assert.ErrorIs(t, err, story.ErrNotFound)
}

func TestPlayerIsShared(t *testing.T) {
	sn := newTestNest(t)

	first := sn.Player(player.Settings{DeepLink: true}, player.NewMemoryLocation(nil))
	second := sn.Player(player.Settings{}, nil)

	assert.Same(t, first, second)
	assert.True(t, second.Settings().DeepLink)
}

func TestStartPlayback(t *testing.T) {
	sn := newTestNest(t)
	loc := player.NewMemoryLocation(nil)
	engine := sn.Player(player.Settings{DeepLink: true}, loc)

	require.NoError(t, sn.startPlayback(engine, []string{"Match Report"}))
	assert.Equal(t, player.StatePlaying, engine.State())
	assert.Equal(t, 1, engine.Position().Story)
	assert.Equal(t, "match-report", loc.Get(player.DeepLinkParam))

	s := engine.Snapshot()
	require.Len(t, s.Pages, 1)
	assert.Equal(t, story.PageNoContent, s.Pages[0].Type)
}

func TestStartPlaybackDefaultsToFirstStory(t *testing.T) {
	sn := newTestNest(t)
	engine := sn.Player(player.Settings{}, nil)

	require.NoError(t, sn.startPlayback(engine, nil))
	assert.Equal(t, player.Position{}, engine.Position())
	assert.Len(t, engine.Snapshot().Pages, 2)
}

func TestStartPlaybackFollowsDeepLink(t *testing.T) {
	sn := newTestNest(t)
	loc := player.NewMemoryLocation(map[string]string{player.DeepLinkParam: "match-report"})
	engine := sn.Player(player.Settings{DeepLink: true}, loc)

	require.NoError(t, sn.startPlayback(engine, nil))
	assert.Equal(t, 1, engine.Position().Story)
}

func TestStartPlaybackUnknownStory(t *testing.T) {
	sn := newTestNest(t)
	engine := sn.Player(player.Settings{}, nil)

	err := sn.startPlayback(engine, []string{"nope"})
	assert.ErrorIs(t, err, story.ErrNotFound)
	assert.Equal(t, player.StateClosed, engine.State())
}

func TestCommands(t *testing.T) {
	sn := newTestNest(t)

	list := &cobra.Command{Use: "list"}
	list.Flags().Bool("featured", false, "")
	list.Flags().String("search", "", "")
	list.Flags().Int("page", 1, "")
	list.Flags().Int("per-page", 0, "")
	list.Flags().Bool("refresh", false, "")
	require.NoError(t, list.Flags().Set("featured", "true"))
	assert.NoError(t, sn.ListStories(list, nil))

	assert.NoError(t, sn.ShowStory(&cobra.Command{}, []string{"morning-brief"}))
	assert.NoError(t, sn.ShowArticle(&cobra.Command{}, []string{"1"}))
	assert.ErrorIs(t, sn.ShowStory(&cobra.Command{}, []string{"nope"}), story.ErrNotFound)

	voices := &cobra.Command{Use: "voices"}
	voices.Flags().Bool("clear-cache", false, "")
	assert.NoError(t, sn.Voices(voices, nil))
}

func TestArticleThroughPlayer(t *testing.T) {
	sn := newTestNest(t)
	engine := sn.Player(player.Settings{}, nil)
	require.NoError(t, sn.startPlayback(engine, nil))

	article, err := engine.Article(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Morning Brief", article.Title)
	assert.Contains(t, article.Text, "Second paragraph.")
}

func TestListStoriesFromStaleCache(t *testing.T) {
	srv := newStoryServer(t)
	cfg := testConfig(srv.URL)
	cfg.Index.CachePath = t.TempDir()
	sn, err := NewStoryNest(cfg)
	require.NoError(t, err)
	defer sn.Shutdown()

	list := &cobra.Command{Use: "list"}
	list.Flags().Int("page", 1, "")
	list.Flags().Bool("refresh", false, "")
	require.NoError(t, sn.ListStories(list, nil))

	srv.Close()
	assert.NoError(t, sn.ListStories(list, nil))

	require.NoError(t, list.Flags().Set("refresh", "true"))
	assert.Error(t, sn.ListStories(list, nil))
}
