package domain

import "slices"

const (
	ComponentLinuxProcess = "linux_process"
	ComponentLinuxSystem  = "linux_system"
)

type Component struct {
	Type    string   `json:"component_type" cbor:"1,keyasint"`
	ID      string   `json:"component_id" cbor:"2,keyasint"`
	Signals []Signal `json:"signals,omitempty" cbor:"3,keyasint,omitempty"`
}

// AddSignal ignores nil and empty signals.
func (c *Component) AddSignal(s *Signal) {
	if s.IsEmpty() {
		return
	}
	c.Signals = append(c.Signals, *s)
}

func (c *Component) Signal(unit Unit) *Signal {
	for i := range c.Signals {
		if c.Signals[i].Unit == unit {
			return &c.Signals[i]
		}
	}
	return nil
}

type Report struct {
	Components []Component       `json:"components,omitempty" cbor:"1,keyasint,omitempty"`
	Tags       map[string]string `json:"tags,omitempty" cbor:"2,keyasint,omitempty"`
}

// AddComponent drops components without signals and merges signals into an
// existing component with the same type and id.
func (r *Report) AddComponent(c Component) {
	if len(c.Signals) == 0 {
		return
	}
	if existing := r.Component(c.Type, c.ID); existing != nil {
		existing.Signals = append(existing.Signals, c.Signals...)
		return
	}
	r.Components = append(r.Components, c)
}

func (r *Report) Component(componentType, componentID string) *Component {
	if r == nil {
		return nil
	}
	for i := range r.Components {
		if r.Components[i].Type == componentType && r.Components[i].ID == componentID {
			return &r.Components[i]
		}
	}
	return nil
}

func (r *Report) ComponentsOf(componentType string) []Component {
	var out []Component
	for _, c := range r.Components {
		if c.Type == componentType {
			out = append(out, c)
		}
	}
	return out
}

func (r *Report) SetTag(key, value string) {
	if r.Tags == nil {
		r.Tags = make(map[string]string)
	}
	r.Tags[key] = value
}

// Filter keeps the components whose type and the signals whose unit name are
// both listed. An empty filter keeps everything.
func (r *Report) Filter(filter []string) *Report {
	if r == nil {
		return &Report{}
	}
	if len(filter) == 0 {
		return r.Clone()
	}

	out := &Report{Tags: cloneTags(r.Tags)}
	for _, c := range r.Components {
		if !slices.Contains(filter, c.Type) {
			continue
		}

		projected := Component{Type: c.Type, ID: c.ID}
		for _, s := range c.Signals {
			if slices.Contains(filter, s.Unit.String()) {
				projected.Signals = append(projected.Signals, s)
			}
		}
		out.AddComponent(projected)
	}
	return out
}

// Clone copies the component and signal slices; intervals are shared since
// they are never mutated after construction.
func (r *Report) Clone() *Report {
	if r == nil {
		return &Report{}
	}
	out := &Report{Tags: cloneTags(r.Tags)}
	for _, c := range r.Components {
		out.Components = append(out.Components, Component{
			Type:    c.Type,
			ID:      c.ID,
			Signals: append([]Signal(nil), c.Signals...),
		})
	}
	return out
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
