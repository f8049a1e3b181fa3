package uniform

import (
	"fmt"
	"strings"
)

// ObjectProp is one member of the per-draw object layout.
type ObjectProp uint8

const (
	WorldMatrix ObjectProp = iota
	NormalMatrix
	VertexBufferAddress
)

var objectProps = [...]struct {
	name string
	prop Prop
}{
	WorldMatrix:         {"world_matrix", Mat4F},
	NormalMatrix:        {"normal_matrix", Mat3F},
	VertexBufferAddress: {"vertex_buffer_address", U64},
}

func (p ObjectProp) String() string {
	if int(p) < len(objectProps) {
		return objectProps[p].name
	}
	return fmt.Sprintf("ObjectProp(%d)", p)
}

// ParseObjectProp accepts snake_case or CamelCase names.
func ParseObjectProp(s string) (ObjectProp, error) {
	key := strings.ReplaceAll(strings.ToLower(s), "_", "")
	for i, p := range objectProps {
		if strings.ReplaceAll(p.name, "_", "") == key {
			return ObjectProp(i), nil
		}
	}
	return 0, fmt.Errorf("uniform: unknown object property %q", s)
}

// ParseObjectProps parses a list of object property names.
func ParseObjectProps(names []string) ([]ObjectProp, error) {
	out := make([]ObjectProp, 0, len(names))
	for _, n := range names {
		p, err := ParseObjectProp(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ObjectLayout builds the push layout for props. An empty list yields a
// zero-sized layout.
func ObjectLayout(props ...ObjectProp) *Layout {
	members := make([]Member, len(props))
	for i, p := range props {
		members[i] = Member{Name: p.String(), Prop: objectProps[p].prop}
	}
	return NewLayout("object", members...)
}
