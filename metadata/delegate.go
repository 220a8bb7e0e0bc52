package metadata

// TaggedDelegate wraps an arbitrary get/set backend with a tag identity
// (spec.md §4.1). Unlike EnumControl it does not own the mapping logic
// itself — IsSupported/GetValue/SetValue are supplied by the caller,
// letting a single delegate shape back onto a V4L2 control, a derived
// computation, or (in tests) a plain in-memory fake.
type TaggedDelegate struct {
	controlTag Tag
	optionsTag Tag
	options    []int32

	IsSupported func(v int32) bool
	GetValue    func() (int32, error)
	SetValue    func(v int32) error
}

// NewTaggedDelegate constructs a TaggedDelegate advertising options under
// optionsTag for controlTag, backed by get/set.
func NewTaggedDelegate(controlTag, optionsTag Tag, options []int32, get func() (int32, error), set func(int32) error) *TaggedDelegate {
	opts := make([]int32, len(options))
	copy(opts, options)
	d := &TaggedDelegate{controlTag: controlTag, optionsTag: optionsTag, options: opts, GetValue: get, SetValue: set}
	d.IsSupported = d.defaultIsSupported
	return d
}

func (d *TaggedDelegate) defaultIsSupported(v int32) bool {
	for _, o := range d.options {
		if o == v {
			return true
		}
	}
	return false
}

func (d *TaggedDelegate) StaticTags() []Tag  { return []Tag{d.optionsTag} }
func (d *TaggedDelegate) ControlTags() []Tag { return []Tag{d.controlTag} }
func (d *TaggedDelegate) DynamicTags() []Tag { return []Tag{d.controlTag} }

func (d *TaggedDelegate) PopulateStatic(out Block) error {
	vals := make([]any, len(d.options))
	for i, v := range d.options {
		vals[i] = v
	}
	out.Set(d.optionsTag, TypeInt32, vals)
	return nil
}

func (d *TaggedDelegate) PopulateDynamic(out Block) error {
	v, err := d.GetValue()
	if err != nil {
		return errNoDevice("delegate get: " + err.Error())
	}
	out.SetInt32(d.controlTag, v)
	return nil
}

func (d *TaggedDelegate) PopulateTemplate(tid TemplateID, out Block) error {
	return d.PopulateDynamic(out)
}

func (d *TaggedDelegate) SupportsRequestValues(md Block) bool {
	v, ok := md.Int32(d.controlTag)
	if !ok {
		return true
	}
	return d.IsSupported(v)
}

func (d *TaggedDelegate) SetRequestValues(md Block) error {
	v, ok := md.Int32(d.controlTag)
	if !ok {
		return nil
	}
	if !d.IsSupported(v) {
		return errInvalidArgument(d.controlTag)
	}
	return d.SetValue(v)
}
