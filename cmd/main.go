package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storyreel/internal/cli/scheme/colours"
	"storyreel/internal/config"
	"storyreel/internal/story/nest"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	config.SetDefaults()

	var app *nest.StoryNest

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		if app != nil {
			app.Shutdown()
		}
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye!"))
		os.Exit(0)
	}()

	rootCmd := &cobra.Command{
		Use:   "storyreel",
		Short: "🎞  Tap-through stories in your terminal",
		Long: `
StoryReel plays short, paged stories from a WordPress stories endpoint:
pages advance on their own, swipe or use the arrow keys to move between
pages and stories, and share a link that reopens the same story.
		`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
				logrus.SetLevel(level)
			}
			app, err = nest.NewStoryNest(cfg)
			return err
		},
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}

	rootCmd.PersistentFlags().String("base-url", "", "Stories REST namespace, e.g. https://example.com/wp-json/cm/v1/")
	viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("base-url"))

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "📋 List stories",
		Long:  "Display one page of the story index",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return app.ListStories(cmd, args) },
	}

	// Show command
	showCmd := &cobra.Command{
		Use:   "show <id|slug>",
		Short: "📖 Show the pages of a story",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return app.ShowStory(cmd, args) },
	}

	// Article command
	articleCmd := &cobra.Command{
		Use:   "article <id|slug>",
		Short: "📰 Read the article behind a story",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return app.ShowArticle(cmd, args) },
	}

	// Play command
	playCmd := &cobra.Command{
		Use:   "play [id|slug]",
		Short: "▶️  Open the story player",
		Long:  "Play stories full screen. Without an argument playback starts at the deep-linked story, or the first one.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			closeLog, err := nest.OpenLog(viper.GetString("log.file"))
			if err != nil {
				return err
			}
			defer closeLog()
			return app.Play(cmd, args)
		},
	}

	// Voices command
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎤 List narration voices",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return app.Voices(cmd, args) },
	}

	// Add flags
	listCmd.Flags().BoolP("featured", "f", false, "Only featured stories")
	listCmd.Flags().StringP("search", "s", "", "Search term")
	listCmd.Flags().IntP("page", "p", 1, "Index page")
	listCmd.Flags().Int("per-page", 0, "Stories per page (max 100)")
	listCmd.Flags().Bool("refresh", false, "Ignore the cached index")

	playCmd.Flags().String("link", "", "Share URL to keep in sync; its ?story= parameter opens that story")
	playCmd.Flags().Duration("auto-close", 0, "Close this long after the last story (max 60s)")
	playCmd.Flags().Bool("no-deep-link", false, "Do not read or update the story link parameter")
	playCmd.Flags().BoolP("narrate", "n", false, "Read text pages aloud")
	playCmd.Flags().StringP("voice", "v", "", "Narration voice. See the voices command for options")

	voicesCmd.Flags().Bool("clear-cache", false, "Remove cached narration audio")

	viper.BindPFlag("player.narrate", playCmd.Flags().Lookup("narrate"))

	rootCmd.AddCommand(listCmd, showCmd, articleCmd, playCmd, voicesCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

// Configuration management with Viper
func init() {
	config.Init()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
}
