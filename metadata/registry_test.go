package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/v4l2camerahal/camerahal/halerr"
)

func TestRegistryRejectsTagCollision(t *testing.T) {
	r := NewRegistry()
	r.AddComponent(NewFixedProperty(TagLensFacing, TypeInt32, int32(0)))

	require.Panics(t, func() {
		r.AddComponent(NewFixedProperty(TagLensFacing, TypeInt32, int32(1)))
	})
}

func TestFillStaticAggregatesDisjointComponents(t *testing.T) {
	r := NewRegistry()
	r.AddComponent(NewFixedProperty(TagLensFacing, TypeInt32, int32(0)))
	r.AddComponent(NewMenuControl(TagControlAFMode, TagControlAFAvailableModes, []int32{1, 10, 19, 30}))

	out := NewBlock()
	require.NoError(t, r.FillStatic(out))
	require.True(t, out.Has(TagLensFacing))
	require.True(t, out.Has(TagControlAFAvailableModes))
}

func TestValidationFailureDoesNotApply(t *testing.T) {
	applied := false
	delegate := NewTaggedDelegate(TagControlAFMode, TagControlAFAvailableModes, []int32{1, 2},
		func() (int32, error) { return 1, nil },
		func(v int32) error { applied = true; return nil },
	)
	r := NewRegistry()
	r.AddComponent(delegate)

	md := NewBlock()
	md.SetInt32(TagControlAFMode, 99) // not in {1, 2}

	require.False(t, r.IsValidRequest(md))
	err := r.ApplyRequest(md)
	require.Error(t, err)
	require.False(t, applied, "ApplyRequest must not mutate device state when validation fails")
}

// S1 - Menu control defaults.
func TestMenuControlDefaultsWithinOptions(t *testing.T) {
	m := NewMenuControl(TagControlAFMode, TagControlAFAvailableModes, []int32{1, 10, 19, 30})
	options := map[int32]bool{1: true, 10: true, 19: true, 30: true}

	for tid := TemplateID(1); tid < 6; tid++ {
		out := NewBlock()
		require.NoError(t, m.PopulateTemplate(tid, out))
		v, ok := out.Int32(TagControlAFMode)
		require.True(t, ok)
		require.True(t, options[v])
	}
}

func TestMenuControlEmptyOptionsAlwaysNoDevice(t *testing.T) {
	m := NewMenuControl(TagControlAFMode, TagControlAFAvailableModes, nil)
	for tid := TemplateID(1); tid < 6; tid++ {
		out := NewBlock()
		err := m.PopulateTemplate(tid, out)
		require.ErrorIs(t, err, halerr.ErrNoDevice)
	}
}

// S2 - Control set/get round-trip via a TaggedDelegate.
func TestTaggedDelegateSetGetRoundTrip(t *testing.T) {
	current := int32(0)
	setCalls := 0
	delegate := NewTaggedDelegate(
		TagColorCorrectionAberrationMode, TagColorCorrectionAvailableAberrationModes,
		[]int32{0, 1, 2},
		func() (int32, error) { return current, nil },
		func(v int32) error { current = v; setCalls++; return nil },
	)

	md := NewBlock()
	md.SetInt32(TagColorCorrectionAberrationMode, 1)

	require.True(t, delegate.SupportsRequestValues(md))
	require.NoError(t, delegate.SetRequestValues(md))
	require.Equal(t, 1, setCalls)

	out := NewBlock()
	require.NoError(t, delegate.PopulateDynamic(out))
	v, ok := out.Int32(TagColorCorrectionAberrationMode)
	require.True(t, ok)
	require.Equal(t, int32(1), v)
}
