// Package tts narrates story text through local or cloud speech engines.
package tts

import (
	"context"
	"errors"
)

// ErrDisabled is returned by NewEngine when narration is switched off
var ErrDisabled = errors.New("narration disabled")

// ErrBusy is returned when Speak is called while the engine is still speaking
var ErrBusy = errors.New("engine already speaking")

type Config struct {
	Type     string
	Speed    float64
	Volume   float64
	Voice    string
	CacheDir string
}

// Engine interface for text-to-speech functionality. Speak blocks until the
// text has been read, Stop was called, or ctx is done. A stopped Speak
// returns nil.
type Engine interface {
	Speak(ctx context.Context, text string) error
	SetVoice(voice string) error
	Stop() error
	Pause() error
	Resume() error
	IsPlaying() bool
	Voices(ctx context.Context) ([]string, error)
}

// CacheStats describes the on-disk audio cache of engines that keep one
type CacheStats struct {
	Directory string
	Files     int64
	SizeMB    float64
}

// CacheableEngine extends Engine with cache management capabilities
type CacheableEngine interface {
	Engine
	SetStoryContext(story string)
	CacheStats() (CacheStats, error)
	ClearCache() error
}
