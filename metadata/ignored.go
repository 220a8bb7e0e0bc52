package metadata

// IgnoredControl reports a fixed options list plus a default for a control
// tag the device does not actually let us drive. populate_dynamic always
// returns the default; set_request_values accepts any supported value but
// discards it (spec.md §4.1). This is the documented fallback when an
// EnumControl's mapping construction fails — every valid-looking option is
// still advertised, writes simply have no effect.
type IgnoredControl struct {
	controlTag  Tag
	optionsTag  Tag
	options     []int32
	defaultVal  int32
}

// NewIgnoredControl constructs an IgnoredControl advertising options under
// optionsTag and accepting/ignoring writes to controlTag, always reporting
// defaultValue dynamically.
func NewIgnoredControl(controlTag, optionsTag Tag, options []int32, defaultValue int32) *IgnoredControl {
	opts := make([]int32, len(options))
	copy(opts, options)
	return &IgnoredControl{controlTag: controlTag, optionsTag: optionsTag, options: opts, defaultVal: defaultValue}
}

func (c *IgnoredControl) StaticTags() []Tag  { return []Tag{c.optionsTag} }
func (c *IgnoredControl) ControlTags() []Tag { return []Tag{c.controlTag} }
func (c *IgnoredControl) DynamicTags() []Tag { return []Tag{c.controlTag} }

func (c *IgnoredControl) PopulateStatic(out Block) error {
	vals := make([]any, len(c.options))
	for i, v := range c.options {
		vals[i] = v
	}
	out.Set(c.optionsTag, TypeInt32, vals)
	return nil
}

func (c *IgnoredControl) PopulateDynamic(out Block) error {
	out.SetInt32(c.controlTag, c.defaultVal)
	return nil
}

func (c *IgnoredControl) PopulateTemplate(tid TemplateID, out Block) error {
	out.SetInt32(c.controlTag, c.defaultVal)
	return nil
}

func (c *IgnoredControl) isSupported(v int32) bool {
	for _, o := range c.options {
		if o == v {
			return true
		}
	}
	return false
}

func (c *IgnoredControl) SupportsRequestValues(md Block) bool {
	v, ok := md.Int32(c.controlTag)
	if !ok {
		return true
	}
	return c.isSupported(v)
}

func (c *IgnoredControl) SetRequestValues(md Block) error {
	if !c.SupportsRequestValues(md) {
		return errInvalidArgument(c.controlTag)
	}
	// Accepted and discarded: this control has no device-side effect.
	return nil
}
