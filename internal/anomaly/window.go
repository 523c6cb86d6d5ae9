package anomaly

import (
	"sync"
	"time"
)

// sample is a timestamped sensor value inside a window.
type sample struct {
	at    time.Time
	value float64
}

// SlidingWindow maintains recent sensor values within a time window.
type SlidingWindow struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
	maxSize int
}

// NewSlidingWindow creates a sliding window with the given duration.
func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		window:  window,
		samples: make([]sample, 0, 64),
		maxSize: 10000,
	}
}

// AddAt records a value at a specific time.
func (w *SlidingWindow) AddAt(t time.Time, value float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(t)
	w.samples = append(w.samples, sample{at: t, value: value})

	if len(w.samples) > w.maxSize {
		w.samples = w.samples[len(w.samples)/2:]
	}
}

// Last returns the most recent value, or false when the window is empty.
func (w *SlidingWindow) Last() (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.samples) == 0 {
		return 0, false
	}
	return w.samples[len(w.samples)-1].value, true
}

// Max returns the highest value within the window at time t.
func (w *SlidingWindow) Max(t time.Time) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(t)
	if len(w.samples) == 0 {
		return 0, false
	}
	max := w.samples[0].value
	for _, s := range w.samples[1:] {
		if s.value > max {
			max = s.value
		}
	}
	return max, true
}

// Count returns the number of samples within the window at time t.
func (w *SlidingWindow) Count(t time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(t)
	return len(w.samples)
}

// Reset clears all samples.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = w.samples[:0]
}

// pruneLocked removes samples older than the window. Lock must be held.
func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)

	left, right := 0, len(w.samples)
	for left < right {
		mid := (left + right) / 2
		if w.samples[mid].at.Before(cutoff) {
			left = mid + 1
		} else {
			right = mid
		}
	}
	if left > 0 {
		w.samples = w.samples[left:]
	}
}

// WindowManager manages sliding windows keyed by plot and sensor type.
type WindowManager struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*SlidingWindow
}

// NewWindowManager creates a window manager producing windows of the
// given duration.
func NewWindowManager(window time.Duration) *WindowManager {
	return &WindowManager{
		window:  window,
		windows: make(map[string]*SlidingWindow),
	}
}

// GetOrCreate returns the window for a key, creating it if needed.
func (wm *WindowManager) GetOrCreate(key string) *SlidingWindow {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if w, ok := wm.windows[key]; ok {
		return w
	}
	w := NewSlidingWindow(wm.window)
	wm.windows[key] = w
	return w
}

// Delete removes the window for a key.
func (wm *WindowManager) Delete(key string) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	delete(wm.windows, key)
}

// DeleteAll removes all windows.
func (wm *WindowManager) DeleteAll() {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wm.windows = make(map[string]*SlidingWindow)
}
