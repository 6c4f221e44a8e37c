package main

import (
	"path/filepath"
	"sync"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/podium/pkg/avatar"
)

// loadPhase is where one avatar's load stands.
type loadPhase int

const (
	phaseQueued loadPhase = iota
	phaseLoading
	phaseDone
	phaseFailed
)

type loadEntry struct {
	name          string
	phase         loadPhase
	loaded, total int64
	err           error
}

// fraction is this entry's share of the work done. An unknown total counts
// as halfway once bytes start arriving.
func (e *loadEntry) fraction() float64 {
	switch e.phase {
	case phaseDone, phaseFailed:
		return 1
	case phaseLoading:
		if e.total > 0 {
			return min(1, float64(e.loaded)/float64(e.total))
		}
		if e.loaded > 0 {
			return 0.5
		}
	}
	return 0
}

// loadBoard collects load signals from the loader goroutines for the frame
// loop to display.
type loadBoard struct {
	mu      sync.Mutex
	order   []*avatar.Avatar
	entries map[*avatar.Avatar]*loadEntry
}

func newLoadBoard(avatars []*avatar.Avatar) *loadBoard {
	b := &loadBoard{
		order:   avatars,
		entries: make(map[*avatar.Avatar]*loadEntry, len(avatars)),
	}
	for _, a := range avatars {
		b.entries[a] = &loadEntry{name: filepath.Base(a.Spec().ModelPath)}
	}
	return b
}

func (b *loadBoard) update(a *avatar.Avatar, fn func(e *loadEntry)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[a]; ok {
		fn(e)
	}
}

func (b *loadBoard) LoadStarted(a *avatar.Avatar) {
	b.update(a, func(e *loadEntry) { e.phase = phaseLoading })
}

func (b *loadBoard) LoadProgress(a *avatar.Avatar, loaded, total int64) {
	b.update(a, func(e *loadEntry) { e.loaded, e.total = loaded, total })
}

func (b *loadBoard) LoadDone(a *avatar.Avatar) {
	b.update(a, func(e *loadEntry) { e.phase = phaseDone })
}

func (b *loadBoard) LoadFailed(a *avatar.Avatar, err error) {
	b.update(a, func(e *loadEntry) { e.phase, e.err = phaseFailed, err })
}

// Fraction returns overall progress in [0, 1] and whether any load is still
// running.
func (b *loadBoard) Fraction() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return 1, false
	}
	var sum float64
	pending := false
	for _, a := range b.order {
		e := b.entries[a]
		sum += e.fraction()
		if e.phase == phaseQueued || e.phase == phaseLoading {
			pending = true
		}
	}
	return sum / float64(len(b.order)), pending
}

// Failures returns "name: error" lines for the loads that failed.
func (b *loadBoard) Failures() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, a := range b.order {
		if e := b.entries[a]; e.phase == phaseFailed {
			out = append(out, e.name+": "+e.err.Error())
		}
	}
	return out
}

// easedValue chases a target with a critically damped spring.
type easedValue struct {
	Value    float64
	velocity float64
	spring   harmonica.Spring
}

func newEasedValue(fps int, frequency float64, start float64) easedValue {
	return easedValue{
		Value:  start,
		spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, 1.0),
	}
}

// Update moves Value one frame toward target.
func (v *easedValue) Update(target float64) float64 {
	v.Value, v.velocity = v.spring.Update(v.Value, v.velocity, target)
	return v.Value
}
