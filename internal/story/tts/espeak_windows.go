//go:build windows

package tts

import "errors"

var errNoPause = errors.New("pausing eSpeak is not supported on Windows")

// pauseProcess is unavailable on Windows, which has no SIGSTOP equivalent
func (e *ESpeakEngine) pauseProcess() error {
	return errNoPause
}

func (e *ESpeakEngine) resumeProcess() error {
	return errNoPause
}
