package tracer

import (
	"fmt"

	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
	"github.com/chewxy/math32"
)

// Frustrum stores the ray directions through the four corners of the image
// plane (top-left, top-right, bottom-left, bottom-right). Per pixel
// directions are obtained by interpolating the corner rays.
type Frustrum [4]types.Vec3

func (fr Frustrum) String() string {
	return fmt.Sprintf(
		"Frustrum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// Camera generates primary rays.
type Camera struct {
	Position types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3

	// Vertical field of view in degrees.
	FOV float32

	Frustrum Frustrum
}

func NewCamera(fov float32) *Camera {
	return &Camera{
		Position: types.Vec3{0, 0, 0},
		LookAt:   types.Vec3{0, 0, 1},
		Up:       types.Vec3{0, 1, 0},
		FOV:      fov,
	}
}

// Frame moves the camera in front of box (looking along +z) so that the
// whole box is visible.
func (c *Camera) Frame(box types.BBox) {
	center := box.Center()
	size := box.Size()
	radius := math32.Max(size[0], size[1]) * 0.5
	dist := radius/math32.Tan(c.FOV*0.5*math32.Pi/180) + size[2]*0.5

	c.LookAt = center
	c.Position = center.Sub(types.Vec3{0, 0, dist * 1.1})
	c.Up = types.Vec3{0, 1, 0}
}

// SetupProjection recalculates the frustrum for the given aspect ratio.
func (c *Camera) SetupProjection(aspect float32) {
	dir := c.LookAt.Sub(c.Position).Normalize()
	right := c.Up.Cross(dir).Normalize()
	up := dir.Cross(right)

	tanY := math32.Tan(c.FOV * 0.5 * math32.Pi / 180)
	dx := right.Mul(tanY * aspect)
	dy := up.Mul(tanY)

	c.Frustrum[0] = dir.Sub(dx).Add(dy)
	c.Frustrum[1] = dir.Add(dx).Add(dy)
	c.Frustrum[2] = dir.Sub(dx).Sub(dy)
	c.Frustrum[3] = dir.Add(dx).Sub(dy)
}

// Ray returns the primary ray through the center of pixel (x, y) of a
// frameW x frameH image.
func (c *Camera) Ray(x, y, frameW, frameH uint32) ray.Ray {
	s := (float32(x) + 0.5) / float32(frameW)
	t := (float32(y) + 0.5) / float32(frameH)
	top := c.Frustrum[0].Lerp(c.Frustrum[1], s)
	bottom := c.Frustrum[2].Lerp(c.Frustrum[3], s)
	return ray.Infinite(c.Position, top.Lerp(bottom, t))
}
