package metadata

import "github.com/v4l2camerahal/camerahal/v4l2"

// ControlBackend is the slice of the V4L2 wrapper an EnumControl needs:
// enough to query a control's valid range and get/set its value. Defined
// here (rather than importing the full *v4l2.Device surface into call
// sites) so components can be tested against a fake.
type ControlBackend interface {
	QueryControl(id v4l2.CtrlID) (v4l2.ExtControl, error)
	GetControl(id v4l2.CtrlID) (int64, error)
	SetControl(id v4l2.CtrlID, value int64) error
}

// EnumControl owns a V4L2 control id and a bidirectional mapping between
// driver values and metadata enum values (spec.md §4.1). Construction
// queries the driver for the control's valid range and drops any
// candidate mapping entry outside it; if nothing survives, construction
// fails and the caller is expected to fall back to an IgnoredControl.
type EnumControl struct {
	backend    ControlBackend
	ctrlID     v4l2.CtrlID
	controlTag Tag
	optionsTag Tag

	toV4L2 map[int32]int64
	toMeta map[int64]int32
}

// NewEnumControl builds an EnumControl for ctrlID, restricting candidates
// to those within the driver's reported [minimum, maximum]. It returns
// (nil, error) if no candidate survives.
func NewEnumControl(backend ControlBackend, ctrlID v4l2.CtrlID, controlTag, optionsTag Tag, candidates map[int32]int64) (*EnumControl, error) {
	ext, err := backend.QueryControl(ctrlID)
	if err != nil {
		return nil, errNoDevice("query control range: " + err.Error())
	}

	toV4L2 := make(map[int32]int64)
	toMeta := make(map[int64]int32)
	for metaVal, v4l2Val := range candidates {
		if v4l2Val < ext.Minimum || v4l2Val > ext.Maximum {
			continue
		}
		toV4L2[metaVal] = v4l2Val
		toMeta[v4l2Val] = metaVal
	}
	if len(toV4L2) == 0 {
		return nil, errNoDevice("no candidate values within device control range")
	}

	return &EnumControl{
		backend:    backend,
		ctrlID:     ctrlID,
		controlTag: controlTag,
		optionsTag: optionsTag,
		toV4L2:     toV4L2,
		toMeta:      toMeta,
	}, nil
}

func (e *EnumControl) StaticTags() []Tag  { return []Tag{e.optionsTag} }
func (e *EnumControl) ControlTags() []Tag { return []Tag{e.controlTag} }
func (e *EnumControl) DynamicTags() []Tag { return []Tag{e.controlTag} }

func (e *EnumControl) PopulateStatic(out Block) error {
	vals := make([]any, 0, len(e.toV4L2))
	for metaVal := range e.toV4L2 {
		vals = append(vals, metaVal)
	}
	out.Set(e.optionsTag, TypeInt32, vals)
	return nil
}

func (e *EnumControl) PopulateDynamic(out Block) error {
	v4l2Val, err := e.backend.GetControl(e.ctrlID)
	if err != nil {
		return errNoDevice("get control: " + err.Error())
	}
	metaVal, ok := e.toMeta[v4l2Val]
	if !ok {
		return errNoDevice("device reported value outside known mapping")
	}
	out.SetInt32(e.controlTag, metaVal)
	return nil
}

func (e *EnumControl) PopulateTemplate(tid TemplateID, out Block) error {
	return e.PopulateDynamic(out)
}

func (e *EnumControl) SupportsRequestValues(md Block) bool {
	v, ok := md.Int32(e.controlTag)
	if !ok {
		return true
	}
	_, ok = e.toV4L2[v]
	return ok
}

func (e *EnumControl) SetRequestValues(md Block) error {
	v, ok := md.Int32(e.controlTag)
	if !ok {
		return nil
	}
	v4l2Val, ok := e.toV4L2[v]
	if !ok {
		return errInvalidArgument(e.controlTag)
	}
	if err := e.backend.SetControl(e.ctrlID, v4l2Val); err != nil {
		return errNoDevice("set control: " + err.Error())
	}
	return nil
}
