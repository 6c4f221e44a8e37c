// Package anim implements keyframe clips and the mixer that plays them on a
// scene subtree.
package anim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/taigrr/podium/pkg/math3d"
)

var (
	// ErrEmptyClip is returned when binding a clip without tracks.
	ErrEmptyClip = errors.New("anim: clip has no tracks")
	// ErrMalformedTrack is returned when a track's keys and values disagree.
	ErrMalformedTrack = errors.New("anim: malformed track")
	// ErrUnresolvedTrack is returned when a track targets a node the mixer
	// root cannot reach.
	ErrUnresolvedTrack = errors.New("anim: track target not found")
)

// Path is the node property a track animates.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
)

// Interpolation selects how values between keyframes are computed.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

// Track animates one property of one named node.
type Track struct {
	Node          string
	Path          Path
	Interpolation Interpolation
	Times         []float64 // Seconds, non-decreasing
	Values        []float64 // Flattened; tangents interleaved for cubic spline
}

// Clip is a named bundle of tracks.
type Clip struct {
	Name     string
	Duration float64
	Tracks   []Track
}

// NewClip creates a clip whose duration is the last keyframe time of its
// longest track.
func NewClip(name string, tracks []Track) *Clip {
	c := &Clip{Name: name, Tracks: tracks}
	for _, t := range tracks {
		if n := len(t.Times); n > 0 && t.Times[n-1] > c.Duration {
			c.Duration = t.Times[n-1]
		}
	}
	return c
}

// DisplayName returns the clip name or a placeholder for unnamed clips.
func (c *Clip) DisplayName() string {
	if c.Name == "" {
		return "(no name)"
	}
	return c.Name
}

// Validate checks that the clip has tracks and that every track is
// internally consistent.
func (c *Clip) Validate() error {
	if len(c.Tracks) == 0 {
		return ErrEmptyClip
	}
	for i, t := range c.Tracks {
		if err := t.validate(); err != nil {
			return fmt.Errorf("track %d (%s): %w", i, t.Node, err)
		}
	}
	return nil
}

func (t Track) components() int {
	if t.Path == PathRotation {
		return 4
	}
	return 3
}

func (t Track) stride() int {
	if t.Interpolation == InterpolationCubicSpline {
		return t.components() * 3
	}
	return t.components()
}

func (t Track) validate() error {
	if len(t.Times) == 0 {
		return fmt.Errorf("%w: no keyframes", ErrMalformedTrack)
	}
	if len(t.Values) != len(t.Times)*t.stride() {
		return fmt.Errorf("%w: %d values for %d keyframes", ErrMalformedTrack, len(t.Values), len(t.Times))
	}
	for i := 1; i < len(t.Times); i++ {
		if t.Times[i] < t.Times[i-1] {
			return fmt.Errorf("%w: keyframe times decrease at %d", ErrMalformedTrack, i)
		}
	}
	return nil
}

// value returns the keyframe value k as a 4-vector; the padding component
// is unused for 3-component paths.
func (t Track) value(k int) [4]float64 {
	c := t.components()
	off := k * t.stride()
	if t.Interpolation == InterpolationCubicSpline {
		off += c // skip in-tangent
	}
	var v [4]float64
	copy(v[:c], t.Values[off:off+c])
	return v
}

func (t Track) tangent(k int, out bool) [4]float64 {
	c := t.components()
	off := k * t.stride()
	if out {
		off += 2 * c
	}
	var v [4]float64
	copy(v[:c], t.Values[off:off+c])
	return v
}

// Sample evaluates the track at time, clamping outside the keyframe range.
func (t Track) Sample(time float64) [4]float64 {
	n := len(t.Times)
	if time <= t.Times[0] || n == 1 {
		return t.value(0)
	}
	if time >= t.Times[n-1] {
		return t.value(n - 1)
	}

	// First key strictly after time
	next := sort.Search(n, func(i int) bool { return t.Times[i] > time })
	prev := next - 1
	span := t.Times[next] - t.Times[prev]
	u := 0.0
	if span > 0 {
		u = (time - t.Times[prev]) / span
	}

	switch t.Interpolation {
	case InterpolationStep:
		return t.value(prev)
	case InterpolationCubicSpline:
		return t.hermite(prev, next, u, span)
	}

	a, b := t.value(prev), t.value(next)
	if t.Path == PathRotation {
		q := toQuat(a).Slerp(toQuat(b), u)
		return [4]float64{q.X, q.Y, q.Z, q.W}
	}
	var out [4]float64
	for i := range 3 {
		out[i] = a[i] + (b[i]-a[i])*u
	}
	return out
}

func (t Track) hermite(prev, next int, u, span float64) [4]float64 {
	v0, v1 := t.value(prev), t.value(next)
	b0 := t.tangent(prev, true)
	a1 := t.tangent(next, false)

	u2 := u * u
	u3 := u2 * u
	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2

	var out [4]float64
	for i := range t.components() {
		out[i] = h00*v0[i] + h10*span*b0[i] + h01*v1[i] + h11*span*a1[i]
	}
	if t.Path == PathRotation {
		q := toQuat(out).Normalize()
		return [4]float64{q.X, q.Y, q.Z, q.W}
	}
	return out
}

func toQuat(v [4]float64) math3d.Quat {
	return math3d.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}
}
