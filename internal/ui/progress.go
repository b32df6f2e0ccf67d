package ui

import "time"

// ProgressState is the locally interpolated position of the playing track.
//
// The server reports progress once per poll; between polls the display advances it by wall-clock time.
type ProgressState struct {
	DisplayedMs int
	LastSync    time.Time
}

// Sync resets the displayed position to the server's value.
func (p *ProgressState) Sync(progressMs int, at time.Time) {
	p.DisplayedMs = max(0, progressMs)
	p.LastSync = at
}

// Advance moves the position forward by the time elapsed since the last frame or sync, clamped to durationMs.
// The position never moves backwards.
func (p *ProgressState) Advance(now time.Time, durationMs int) int {
	elapsed := now.Sub(p.LastSync).Milliseconds()
	if elapsed <= 0 {
		return p.DisplayedMs
	}
	// Carry the sub-millisecond remainder into the next frame.
	p.LastSync = p.LastSync.Add(time.Duration(elapsed) * time.Millisecond)

	next := min(p.DisplayedMs+int(elapsed), max(durationMs, 0))
	p.DisplayedMs = max(p.DisplayedMs, next)
	return p.DisplayedMs
}

// Fraction is the displayed position as a fraction of durationMs, for progress bars.
func (p ProgressState) Fraction(durationMs int) float64 {
	if durationMs <= 0 {
		return 0
	}
	return min(1, float64(p.DisplayedMs)/float64(durationMs))
}
