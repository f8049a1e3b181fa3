package batch

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framegraph/uniform"
)

// SceneInfo is the camera and light state a scene walker hands to the
// batch each frame.
type SceneInfo struct {
	CameraPosition mgl32.Vec3
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	LightDirection mgl32.Vec3
	LightColor     mgl32.Vec4
	AmbientColor   mgl32.Vec4
}

// ViewProj returns Projection * View.
func (s *SceneInfo) ViewProj() mgl32.Mat4 { return s.Projection.Mul4(s.View) }

// Values returns the values of the members of layout, matched by member
// name.
func (s *SceneInfo) Values(l *uniform.Layout) ([]any, error) {
	members := l.Members()
	values := make([]any, len(members))
	for i, m := range members {
		switch m.Name {
		case "camera_position":
			values[i] = s.CameraPosition
		case "view_proj":
			values[i] = s.ViewProj()
		case "view":
			values[i] = s.View
		case "projection":
			values[i] = s.Projection
		case "light_direction":
			values[i] = s.LightDirection
		case "light_color":
			values[i] = s.LightColor
		case "ambient_color":
			values[i] = s.AmbientColor
		default:
			return nil, fmt.Errorf("%w: %s has no scene value for %q", uniform.ErrLayoutMismatch, l.Name(), m.Name)
		}
	}
	return values, nil
}

// Pack packs s into layout.
func (s *SceneInfo) Pack(l *uniform.Layout) ([]byte, error) {
	values, err := s.Values(l)
	if err != nil {
		return nil, err
	}
	return l.Pack(values...)
}
