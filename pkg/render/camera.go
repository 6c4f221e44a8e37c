package render

import (
	"math"

	"github.com/taigrr/podium/pkg/math3d"
)

// MinDistance keeps the orbit camera outside the avatars' reference box.
const MinDistance = 1.5

// Camera orbits a target point at a fixed yaw of zero, looking down -Z.
// Avatars turn, the camera does not.
type Camera struct {
	Target   math3d.Vec3 // Point the camera looks at
	Distance float64     // Distance from the target along +Z
	Height   float64     // Eye height above the target

	FOV         float64 // Vertical field of view in radians
	AspectRatio float64 // Width / Height
	Near        float64
	Far         float64

	viewMatrix     math3d.Mat4
	projMatrix     math3d.Mat4
	viewProjMatrix math3d.Mat4
	viewDirty      bool
	projDirty      bool
}

// NewCamera returns a camera framing two side-by-side avatars of the
// reference size.
func NewCamera() *Camera {
	return &Camera{
		Distance:    5,
		Height:      0.4,
		FOV:         math.Pi / 3, // 60 degrees
		AspectRatio: 16.0 / 9.0,
		Near:        0.1,
		Far:         100,
		viewDirty:   true,
		projDirty:   true,
	}
}

// SetTarget sets the orbit target.
func (c *Camera) SetTarget(target math3d.Vec3) {
	c.Target = target
	c.viewDirty = true
}

// SetDistance moves the eye along the view axis, clamped to MinDistance.
func (c *Camera) SetDistance(d float64) {
	c.Distance = math.Max(MinDistance, d)
	c.viewDirty = true
}

// SetHeight sets the eye height above the target.
func (c *Camera) SetHeight(h float64) {
	c.Height = h
	c.viewDirty = true
}

// SetFOV sets the field of view (in radians).
func (c *Camera) SetFOV(fov float64) {
	c.FOV = fov
	c.projDirty = true
}

// SetAspectRatio sets the aspect ratio.
func (c *Camera) SetAspectRatio(aspect float64) {
	if aspect <= 0 {
		return
	}
	c.AspectRatio = aspect
	c.projDirty = true
}

// Position returns the eye position in world space.
func (c *Camera) Position() math3d.Vec3 {
	return c.Target.Add(math3d.V3(0, c.Height, c.Distance))
}

// ViewMatrix returns the view matrix.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		c.viewMatrix = math3d.LookAt(c.Position(), c.Target, math3d.Up())
		c.viewDirty = false
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the projection matrix.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.projMatrix = math3d.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
		c.projDirty = false
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns the combined view-projection matrix.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	if c.viewDirty || c.projDirty {
		c.viewProjMatrix = c.ProjectionMatrix().Mul(c.ViewMatrix())
	}
	return c.viewProjMatrix
}

// WorldToScreen transforms a world point to screen coordinates.
// Returns (screenX, screenY, depth, visible).
func (c *Camera) WorldToScreen(worldPos math3d.Vec3, screenWidth, screenHeight int) (x, y, depth float64, visible bool) {
	clip := c.ViewProjectionMatrix().MulVec4(math3d.V4FromV3(worldPos, 1))
	if clip.W <= 0 {
		return 0, 0, 0, false
	}

	nx, ny, nz := clip.X/clip.W, clip.Y/clip.W, clip.Z/clip.W
	if nx < -1 || nx > 1 || ny < -1 || ny > 1 || nz < -1 || nz > 1 {
		return 0, 0, 0, false
	}

	x = (nx + 1) * 0.5 * float64(screenWidth)
	y = (1 - ny) * 0.5 * float64(screenHeight) // Y is flipped
	return x, y, nz, true
}
