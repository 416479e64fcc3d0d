package player

import "time"

type timeStamp struct {
	at       time.Time
	duration time.Duration
}

// startPageTimerLocked (re)arms the autoplay timer at the full page duration.
// Any previous timer is cancelled first, so there is never more than one.
func (e *Engine) startPageTimerLocked() {
	e.cancelPageTimerLocked()
	if !e.playing || !e.visible || e.loading || len(e.stories) == 0 {
		return
	}
	d := e.stories[e.pos.Story]
	if !d.PagesLoaded {
		return
	}

	seq := e.pageSeq
	duration := d.PageDuration()
	e.pageStarted = timeStamp{at: e.sched.Now(), duration: duration}
	e.pageTimer = e.sched.AfterFunc(duration, func() { e.onPageTimer(seq) })
}

// cancelPageTimerLocked stops the autoplay timer. Bumping the sequence also
// disarms a callback that already fired and is waiting for the lock.
func (e *Engine) cancelPageTimerLocked() {
	if e.pageTimer != nil {
		e.pageTimer.Stop()
		e.pageTimer = nil
	}
	e.pageSeq++
}

func (e *Engine) onPageTimer(seq uint64) {
	e.mu.Lock()
	if e.destroyed || seq != e.pageSeq {
		e.mu.Unlock()
		return
	}
	e.pageTimer = nil
	e.pageSeq++
	e.mu.Unlock()

	if err := e.NextPage(e.ctx); err != nil {
		e.log.WithError(err).Debug("Autoplay advance failed")
	}
}

func (e *Engine) scheduleAutoCloseLocked() {
	e.cancelAutoCloseLocked()
	seq := e.closeSeq
	e.closeTimer = e.sched.AfterFunc(e.settings.AutoClose, func() {
		e.mu.Lock()
		ok := !e.destroyed && seq == e.closeSeq
		if ok {
			e.closeTimer = nil
		}
		e.mu.Unlock()

		if ok {
			e.log.Debug("Closing after last story")
			e.Close()
		}
	})
}

func (e *Engine) cancelAutoCloseLocked() {
	if e.closeTimer != nil {
		e.closeTimer.Stop()
		e.closeTimer = nil
	}
	e.closeSeq++
}

func (e *Engine) stopTimersLocked() {
	e.cancelPageTimerLocked()
	e.cancelAutoCloseLocked()
}
