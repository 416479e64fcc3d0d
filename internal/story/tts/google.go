package tts

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
)

const (
	defaultGoogleVoice = "en-GB-Chirp3-HD-Umbriel"

	// a little under the 5000 byte request limit
	chunkLimit = 4800
)

var errStopped = errors.New("speech stopped")

type GoogleClassicTTSEngine struct {
	client   *texttospeech.Client
	cacheDir string

	mu         sync.Mutex
	voice      string
	speed      float64
	volume     float64
	story      string
	ctrl       *beep.Ctrl
	stop       chan struct{}
	sampleRate beep.SampleRate
}

func newGoogleClassicTTSEngine(config Config) (*GoogleClassicTTSEngine, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	cacheDir := config.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "storyreel-tts")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	voice := config.Voice
	if voice == "" {
		voice = defaultGoogleVoice
	}

	return &GoogleClassicTTSEngine{
		client:   client,
		cacheDir: cacheDir,
		voice:    voice,
		speed:    config.Speed,
		volume:   config.Volume,
	}, nil
}

// SetStoryContext groups cached audio under the given story so it can be
// inspected and cleared per story.
func (g *GoogleClassicTTSEngine) SetStoryContext(story string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.story = slug.Make(story)
}

// storyCacheDir returns the cache directory for the current story
func (g *GoogleClassicTTSEngine) storyCacheDir() string {
	if g.story == "" {
		return g.cacheDir
	}
	return filepath.Join(g.cacheDir, "google_classic", g.story)
}

func (g *GoogleClassicTTSEngine) Speak(ctx context.Context, text string) error {
	paths, err := g.synthesize(ctx, text)
	if err != nil {
		return err
	}

	for _, path := range paths {
		err := g.play(ctx, path)
		if errors.Is(err, errStopped) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// synthesize makes sure every chunk of text is cached as an MP3 file and
// returns the files in reading order.
func (g *GoogleClassicTTSEngine) synthesize(ctx context.Context, text string) ([]string, error) {
	g.mu.Lock()
	dir := g.storyCacheDir()
	voice, speed, volume := g.voice, g.speed, g.volume
	g.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	hash := md5Sum(text + voice)[:8]
	chunks := splitIntoChunks(text, chunkLimit)
	paths := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		path := filepath.Join(dir, fmt.Sprintf("audio_%s_%d.mp3", hash, i))
		paths = append(paths, path)

		if _, err := os.Stat(path); err == nil {
			continue
		}

		audio := &texttospeechpb.AudioConfig{AudioEncoding: texttospeechpb.AudioEncoding_MP3}
		// Chirp voices reject rate and gain settings
		if !strings.Contains(strings.ToLower(voice), "chirp") {
			audio.SpeakingRate = speed
			audio.VolumeGainDb = volumeToDB(volume)
		}

		resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: languageCode(voice),
				Name:         voice,
			},
			AudioConfig: audio,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d: %w", i, err)
		}

		if err := os.WriteFile(path, resp.AudioContent, 0644); err != nil {
			return nil, fmt.Errorf("failed to write MP3 chunk %d to %s: %w", i, path, err)
		}
		logrus.WithFields(logrus.Fields{"chunk": i + 1, "of": len(chunks), "path": path}).Debug("Cached audio chunk")
	}
	return paths, nil
}

// play blocks until the file finished playing, Stop was called or ctx is done
func (g *GoogleClassicTTSEngine) play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cached MP3 %s: %w", path, err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode MP3 %s: %w", path, err)
	}
	defer streamer.Close()

	done := make(chan struct{})
	stop := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: streamer}

	g.mu.Lock()
	if g.sampleRate != format.SampleRate {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			g.mu.Unlock()
			return err
		}
		g.sampleRate = format.SampleRate
	}
	g.ctrl = ctrl
	g.stop = stop
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if g.ctrl == ctrl {
			g.ctrl = nil
			g.stop = nil
		}
		g.mu.Unlock()
	}()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-stop:
		speaker.Clear()
		return errStopped
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func (g *GoogleClassicTTSEngine) SetVoice(voice string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voice = voice
	return nil
}

func (g *GoogleClassicTTSEngine) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
	return nil
}

func (g *GoogleClassicTTSEngine) Pause() error {
	return g.setPaused(true)
}

func (g *GoogleClassicTTSEngine) Resume() error {
	return g.setPaused(false)
}

func (g *GoogleClassicTTSEngine) setPaused(paused bool) error {
	g.mu.Lock()
	ctrl := g.ctrl
	g.mu.Unlock()

	if ctrl != nil {
		speaker.Lock()
		ctrl.Paused = paused
		speaker.Unlock()
	}
	return nil
}

func (g *GoogleClassicTTSEngine) IsPlaying() bool {
	g.mu.Lock()
	ctrl := g.ctrl
	g.mu.Unlock()
	if ctrl == nil {
		return false
	}

	speaker.Lock()
	defer speaker.Unlock()
	return !ctrl.Paused
}

func (g *GoogleClassicTTSEngine) Voices(ctx context.Context) ([]string, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, err
	}
	voices := make([]string, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

// CacheStats walks the whole cache tree and totals the MP3 files.
func (g *GoogleClassicTTSEngine) CacheStats() (CacheStats, error) {
	stats := CacheStats{Directory: g.cacheDir}

	var size int64
	err := filepath.Walk(g.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".mp3") {
			stats.Files++
			size += info.Size()
		}
		return nil
	})
	stats.SizeMB = float64(size) / (1024 * 1024)
	return stats, err
}

// ClearCache removes all cached files
func (g *GoogleClassicTTSEngine) ClearCache() error {
	return os.RemoveAll(g.cacheDir)
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// languageCode takes "en-GB" out of a voice name such as "en-GB-Chirp3-HD-Umbriel"
func languageCode(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

// volumeToDB maps a linear 0-2 volume onto the API's gain range
func volumeToDB(volume float64) float64 {
	db := (volume - 1) * 16
	switch {
	case db < -96:
		return -96
	case db > 16:
		return 16
	}
	return db
}
