// Cross-platform eSpeak implementation
package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ESpeakEngine implements TTS using eSpeak/eSpeak-NG
type ESpeakEngine struct {
	config  Config
	path    string
	cmd     *exec.Cmd
	paused  bool
	stopped bool
	mutex   sync.RWMutex
}

// newESpeakEngine creates a new eSpeak TTS engine
func newESpeakEngine(config Config) (*ESpeakEngine, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}

	if err := exec.Command(espeakPath, "--version").Run(); err != nil {
		return nil, fmt.Errorf("eSpeak test failed: %w", err)
	}

	return &ESpeakEngine{config: config, path: espeakPath}, nil
}

func findESpeakExecutable() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

// espeakArgs builds the command line for one utterance
func espeakArgs(config Config, text string) []string {
	args := []string{}

	if config.Voice != "" && config.Voice != "default" {
		args = append(args, "-v", config.Voice)
	}

	// words per minute, eSpeak default is 175
	args = append(args, "-s", strconv.Itoa(int(175*config.Speed)))

	// amplitude 0-200, eSpeak default is 100
	args = append(args, "-a", strconv.Itoa(int(100*config.Volume)))

	// "--" keeps text starting with a dash from being read as a flag
	return append(args, "--", text)
}

func (e *ESpeakEngine) Speak(ctx context.Context, text string) error {
	e.mutex.Lock()
	if e.cmd != nil {
		e.mutex.Unlock()
		return ErrBusy
	}

	cmd := exec.CommandContext(ctx, e.path, espeakArgs(e.config, text)...)
	if err := cmd.Start(); err != nil {
		e.mutex.Unlock()
		return fmt.Errorf("failed to start eSpeak: %w", err)
	}
	e.cmd = cmd
	e.paused = false
	e.stopped = false
	e.mutex.Unlock()

	err := cmd.Wait()

	e.mutex.Lock()
	stopped := e.stopped
	if e.cmd == cmd {
		e.cmd = nil
		e.paused = false
	}
	e.mutex.Unlock()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case stopped:
		return nil
	case err != nil:
		logrus.WithError(err).Warn("eSpeak exited with an error")
		return fmt.Errorf("eSpeak: %w", err)
	}
	return nil
}

func (e *ESpeakEngine) Stop() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	e.stopped = true
	if e.paused {
		// a stopped process has to be continued before it can die on some systems
		_ = e.resumeProcess()
		e.paused = false
	}
	return e.cmd.Process.Kill()
}

func (e *ESpeakEngine) Pause() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.cmd == nil || e.cmd.Process == nil || e.paused {
		return nil
	}
	if err := e.pauseProcess(); err != nil {
		return err
	}
	e.paused = true
	return nil
}

func (e *ESpeakEngine) Resume() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.paused || e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	if err := e.resumeProcess(); err != nil {
		return err
	}
	e.paused = false
	return nil
}

func (e *ESpeakEngine) SetVoice(voice string) error {
	voices, err := e.Voices(context.Background())
	if err != nil {
		return err
	}

	for _, v := range voices {
		if v == voice {
			e.mutex.Lock()
			e.config.Voice = voice
			e.mutex.Unlock()
			return nil
		}
	}
	return fmt.Errorf("voice '%s' not available", voice)
}

func (e *ESpeakEngine) IsPlaying() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.cmd != nil && !e.paused
}

func (e *ESpeakEngine) IsPaused() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.paused
}

func (e *ESpeakEngine) Voices(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, err
	}
	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName File Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}
