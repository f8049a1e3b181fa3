package uniform

import "testing"

func TestParseSceneProps(t *testing.T) {
	tests := []struct {
		in   []string
		want []SceneProp
		ok   bool
	}{
		{[]string{"view_proj"}, []SceneProp{ViewProj}, true},
		{[]string{"CameraPosition", "light_direction"}, []SceneProp{CameraPosition, LightDirection}, true},
		{[]string{"ScreenSize"}, []SceneProp{ScreenSize}, true},
		{[]string{"view_proj", "fog"}, nil, false},
		{nil, []SceneProp{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSceneProps(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseSceneProps(%v) err = %v", tt.in, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseSceneProps(%v) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseSceneProps(%v)[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestSceneLayout(t *testing.T) {
	if SceneLayout() != nil {
		t.Error("empty scene layout is not nil")
	}
	l := SceneLayout(CameraPosition, ViewProj, LightColor)
	if l.Name() != "scene" {
		t.Errorf("name = %q", l.Name())
	}
	if l.Size() != 96 {
		t.Errorf("size = %d, want 96", l.Size())
	}
	if l.Members()[1].Name != "view_proj" || l.Offset(1) != 16 {
		t.Errorf("member 1 = %+v at %d", l.Members()[1], l.Offset(1))
	}
	if s := SceneProp(200).String(); s != "SceneProp(200)" {
		t.Errorf("unknown prop = %q", s)
	}
}
