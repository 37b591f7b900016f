package editor

import (
	"sync"
	"time"
)

// SelectionDebounceDelay gives the UI toolkit time to finish mutating the
// live selection before the snapshot is read.
const SelectionDebounceDelay = 10 * time.Millisecond

// TooltipHideDelay is how long a note tooltip lingers after hover leaves.
const TooltipHideDelay = 300 * time.Millisecond

// Debouncer coalesces rapid triggers into a single callback after a fixed
// delay. A new trigger replaces any pending one. Stop prevents all future
// callbacks, including one already scheduled.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	stopped bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Tooltip tracks one highlight's detail popover: it shows immediately on
// hover-enter and hides a fixed delay after hover-leave. While an edit,
// delete, or creation interaction is in progress hiding is suppressed
// entirely. A new hover-enter cancels any pending hide.
type Tooltip struct {
	mu         sync.Mutex
	hideDelay  time.Duration
	visible    bool
	suppressed bool
	hideTimer  *time.Timer
}

func NewTooltip(hideDelay time.Duration) *Tooltip {
	return &Tooltip{hideDelay: hideDelay}
}

func (t *Tooltip) HoverEnter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelHideLocked()
	if t.suppressed {
		return
	}
	t.visible = true
}

func (t *Tooltip) HoverLeave() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suppressed || !t.visible {
		return
	}
	t.cancelHideLocked()
	t.hideTimer = time.AfterFunc(t.hideDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.suppressed {
			t.visible = false
		}
	})
}

// Suppress marks an interaction in progress. Entering suppression cancels
// any pending hide and hides the tooltip (the popover takes over); leaving
// it returns the tooltip to normal hover behavior.
func (t *Tooltip) Suppress(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suppressed = on
	if on {
		t.cancelHideLocked()
		t.visible = false
	}
}

func (t *Tooltip) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Close stops any pending timer; the tooltip must not resurface afterwards.
func (t *Tooltip) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelHideLocked()
	t.visible = false
	t.suppressed = true
}

func (t *Tooltip) cancelHideLocked() {
	if t.hideTimer != nil {
		t.hideTimer.Stop()
		t.hideTimer = nil
	}
}
