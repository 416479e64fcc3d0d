package tts

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// MockTTSEngine records what it was asked to say instead of producing audio
type MockTTSEngine struct {
	mu     sync.Mutex
	spoken []string
	paused bool
	speed  float64
	volume float64
	voice  string
}

func NewMockTTSEngine(c Config) *MockTTSEngine {
	voice := c.Voice
	if voice == "" {
		voice = "mock-voice"
	}
	return &MockTTSEngine{
		speed:  c.Speed,
		volume: c.Volume,
		voice:  voice,
	}
}

func (m *MockTTSEngine) Voices(ctx context.Context) ([]string, error) {
	return []string{"mock-voice"}, nil
}

func (m *MockTTSEngine) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken = append(m.spoken, text)
	m.paused = false

	logrus.WithField("words", len(strings.Fields(text))).Debug("Mock narration")
	return nil
}

// Spoken returns every text passed to Speak, oldest first.
func (m *MockTTSEngine) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

func (m *MockTTSEngine) SetVoice(voice string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voice = voice
	return nil
}

func (m *MockTTSEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	return nil
}

func (m *MockTTSEngine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	return nil
}

func (m *MockTTSEngine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	return nil
}

// IsPlaying is always false: mock speech finishes immediately.
func (m *MockTTSEngine) IsPlaying() bool {
	return false
}

// IsPaused reports whether Pause was called since the last Speak or Resume.
func (m *MockTTSEngine) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}
