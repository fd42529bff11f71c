package engine

import "time"

// Window is the admission window around a class start. Early arrivals are
// tolerated for longer than late ones, so the window is asymmetric.
type Window struct {
	Early time.Duration
	Late  time.Duration
}

// DefaultWindow is 30 minutes before to 20 minutes after class start.
func DefaultWindow() Window {
	return Window{Early: 30 * time.Minute, Late: 20 * time.Minute}
}

// Contains reports whether now falls inside
// [classStart-Early, classStart+Late], boundaries inclusive.
func (w Window) Contains(now, classStart time.Time) bool {
	return !now.Before(classStart.Add(-w.Early)) && !now.After(classStart.Add(w.Late))
}
