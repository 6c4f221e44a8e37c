package render

import (
	"github.com/taigrr/podium/pkg/math3d"
)

// Plane represents a plane in 3D space using the equation: Ax + By + Cz + D = 0
// where (A, B, C) is the normal and D is the distance from origin.
type Plane struct {
	Normal math3d.Vec3
	D      float64
}

// Normalize normalizes the plane equation so the normal has unit length.
func (p *Plane) Normalize() {
	l := p.Normal.Len()
	if l == 0 {
		return
	}
	p.Normal = p.Normal.Scale(1.0 / l)
	p.D /= l
}

// DistanceToPoint returns the signed distance from the plane to a point.
// Positive = in front (same side as normal), negative = behind.
func (p Plane) DistanceToPoint(point math3d.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Frustum represents the 6 planes of a view frustum, normals pointing inward.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustum extracts frustum planes from a column-major view-projection
// matrix (Gribb/Hartmann).
func NewFrustum(m math3d.Mat4) Frustum {
	// Row i, column j lives at m[i+j*4]
	row := func(i int) (math3d.Vec3, float64) {
		return math3d.V3(m[i], m[i+4], m[i+8]), m[i+12]
	}
	w, wd := row(3)

	var f Frustum
	for axis := range 3 {
		n, d := row(axis)
		f.Planes[axis*2] = Plane{Normal: w.Add(n), D: wd + d}
		f.Planes[axis*2+1] = Plane{Normal: w.Sub(n), D: wd - d}
	}
	for i := range f.Planes {
		f.Planes[i].Normalize()
	}
	return f
}

// IntersectBounds tests whether any part of the box [lo, hi] may be visible.
// It uses the positive-vertex test, so it can report false positives near
// frustum corners but never culls a visible box.
func (f Frustum) IntersectBounds(lo, hi math3d.Vec3) bool {
	for _, plane := range f.Planes {
		p := math3d.V3(
			pick(plane.Normal.X >= 0, hi.X, lo.X),
			pick(plane.Normal.Y >= 0, hi.Y, lo.Y),
			pick(plane.Normal.Z >= 0, hi.Z, lo.Z),
		)
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint tests if a point is inside the frustum.
func (f Frustum) ContainsPoint(p math3d.Vec3) bool {
	for _, plane := range f.Planes {
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

// pointBounds returns the bounding box of points. ok is false when empty.
func pointBounds(points []math3d.Vec3) (lo, hi math3d.Vec3, ok bool) {
	if len(points) == 0 {
		return lo, hi, false
	}
	lo, hi = points[0], points[0]
	for _, p := range points[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return lo, hi, true
}
