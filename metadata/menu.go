package metadata

// MenuControl is a component backed by an explicit, closed list of
// acceptable values (spec.md §4.1). Its static representation is the
// option list itself; templates pick a fixed member of it.
type MenuControl struct {
	controlTag Tag
	optionsTag Tag
	options    []int32
}

// NewMenuControl constructs a MenuControl exposing options under
// optionsTag and accepting values from it for controlTag.
func NewMenuControl(controlTag, optionsTag Tag, options []int32) *MenuControl {
	opts := make([]int32, len(options))
	copy(opts, options)
	return &MenuControl{controlTag: controlTag, optionsTag: optionsTag, options: opts}
}

func (m *MenuControl) StaticTags() []Tag  { return []Tag{m.optionsTag} }
func (m *MenuControl) ControlTags() []Tag { return []Tag{m.controlTag} }
func (m *MenuControl) DynamicTags() []Tag { return []Tag{m.controlTag} }

func (m *MenuControl) PopulateStatic(out Block) error {
	vals := make([]any, len(m.options))
	for i, v := range m.options {
		vals[i] = v
	}
	out.Set(m.optionsTag, TypeInt32, vals)
	return nil
}

func (m *MenuControl) PopulateDynamic(out Block) error {
	if len(m.options) == 0 {
		return errNoDevice("menu control has no options")
	}
	out.SetInt32(m.controlTag, m.options[0])
	return nil
}

// PopulateTemplate returns the menu's default for template tid. Every
// template currently maps to the same, first option; an empty option set
// is a hard failure for every template id (spec.md scenario S1).
func (m *MenuControl) PopulateTemplate(tid TemplateID, out Block) error {
	if len(m.options) == 0 {
		return errNoDevice("menu control has no options")
	}
	out.SetInt32(m.controlTag, m.options[0])
	return nil
}

func (m *MenuControl) isSupported(v int32) bool {
	for _, o := range m.options {
		if o == v {
			return true
		}
	}
	return false
}

func (m *MenuControl) SupportsRequestValues(md Block) bool {
	v, ok := md.Int32(m.controlTag)
	if !ok {
		return true
	}
	return m.isSupported(v)
}

func (m *MenuControl) SetRequestValues(md Block) error {
	if !m.SupportsRequestValues(md) {
		return errInvalidArgument(m.controlTag)
	}
	return nil
}
