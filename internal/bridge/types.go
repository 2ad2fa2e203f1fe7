package bridge

// XY is a CIE xy colour coordinate pair.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LightPatch is a partial light state. Nil fields are left untouched by
// the hub; the same shape describes both commands and scene targets.
type LightPatch struct {
	On         *bool    `json:"on,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	Mirek      *int     `json:"mirek,omitempty"`
	Color      *XY      `json:"color,omitempty"`
}

// SceneAction is one scene entry: the settings a single light should
// take when the scene is active.
type SceneAction struct {
	Target string `json:"target"`
	LightPatch
}

// Scene is a catalogue entry published by the device bridge.
type Scene struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	GroupID string        `json:"group_id,omitempty"`
	Actions []SceneAction `json:"actions,omitempty"`
}

// GroupState is the live state of a room or zone. AnyOn/AllOn mirror the
// hub's aggregate light state and drive toggle decisions.
type GroupState struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	AnyOn bool   `json:"any_on"`
	AllOn bool   `json:"all_on"`
}

// LightState is the live state of a single light.
type LightState struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	On         bool     `json:"on"`
	Brightness *float64 `json:"brightness,omitempty"`
	Mirek      *int     `json:"mirek,omitempty"`
	Color      *XY      `json:"color,omitempty"`
	Reachable  bool     `json:"reachable"`
}

// ButtonEvent is a hardware event forwarded by the device bridge
// (dimmer switch press, rotary turn, ...).
type ButtonEvent struct {
	ResourceID string `json:"resource_id"`
	Event      string `json:"event"`
}

func (s Scene) clone() Scene {
	out := s
	if s.Actions != nil {
		out.Actions = make([]SceneAction, len(s.Actions))
		for i, a := range s.Actions {
			out.Actions[i] = a.clone()
		}
	}
	return out
}

func (a SceneAction) clone() SceneAction {
	out := a
	out.LightPatch = a.LightPatch.clone()
	return out
}

func (p LightPatch) clone() LightPatch {
	out := p
	if p.On != nil {
		v := *p.On
		out.On = &v
	}
	if p.Brightness != nil {
		v := *p.Brightness
		out.Brightness = &v
	}
	if p.Mirek != nil {
		v := *p.Mirek
		out.Mirek = &v
	}
	if p.Color != nil {
		v := *p.Color
		out.Color = &v
	}
	return out
}

func (l LightState) clone() LightState {
	out := l
	if l.Brightness != nil {
		v := *l.Brightness
		out.Brightness = &v
	}
	if l.Mirek != nil {
		v := *l.Mirek
		out.Mirek = &v
	}
	if l.Color != nil {
		v := *l.Color
		out.Color = &v
	}
	return out
}
