package uniform

import (
	"fmt"
	"strings"
)

// SceneProp is one member of a per-pass scene layout.
type SceneProp uint8

const (
	CameraPosition SceneProp = iota
	ViewProj
	View
	Projection
	LightDirection
	LightColor
	AmbientColor
	ScreenSize
)

var sceneProps = [...]struct {
	name string
	prop Prop
}{
	CameraPosition: {"camera_position", Vec3F},
	ViewProj:       {"view_proj", Mat4F},
	View:           {"view", Mat4F},
	Projection:     {"projection", Mat4F},
	LightDirection: {"light_direction", Vec3F},
	LightColor:     {"light_color", Vec4F},
	AmbientColor:   {"ambient_color", Vec4F},
	ScreenSize:     {"screen_size", Vec2F},
}

func (p SceneProp) String() string {
	if int(p) < len(sceneProps) {
		return sceneProps[p].name
	}
	return fmt.Sprintf("SceneProp(%d)", p)
}

// ParseSceneProp accepts snake_case or CamelCase names.
func ParseSceneProp(s string) (SceneProp, error) {
	key := strings.ReplaceAll(strings.ToLower(s), "_", "")
	for i, p := range sceneProps {
		if strings.ReplaceAll(p.name, "_", "") == key {
			return SceneProp(i), nil
		}
	}
	return 0, fmt.Errorf("uniform: unknown scene property %q", s)
}

// ParseSceneProps parses a list of scene property names.
func ParseSceneProps(names []string) ([]SceneProp, error) {
	out := make([]SceneProp, 0, len(names))
	for _, n := range names {
		p, err := ParseSceneProp(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SceneLayout builds the scene uniform layout for props, or nil when
// props is empty.
func SceneLayout(props ...SceneProp) *Layout {
	if len(props) == 0 {
		return nil
	}
	members := make([]Member, len(props))
	for i, p := range props {
		members[i] = Member{Name: p.String(), Prop: sceneProps[p].prop}
	}
	return NewLayout("scene", members...)
}
