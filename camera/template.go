package camera

import (
	"sync"

	"github.com/v4l2camerahal/camerahal/halerr"
	"github.com/v4l2camerahal/camerahal/metadata"
)

// Capture intent values written into TagControlCaptureIntent. These mirror
// the reference framework's intent enumeration closely enough for the
// overlay logic below to pick sensible per-template AE/FPS defaults.
const (
	intentPreview       int32 = 1
	intentStillCapture   int32 = 2
	intentVideoRecord   int32 = 3
	intentVideoSnapshot int32 = 4
)

// TemplateCache lazily builds and caches the per-template default metadata
// blocks (spec.md §4.4 item 5, §9 "shared read-only" template semantics).
// Once built, a template's block is never mutated again; callers must treat
// the returned Block as read-only and Clone it before editing.
type TemplateCache struct {
	mu    sync.Mutex
	reg   *metadata.Registry
	info  *StaticInfo
	cache map[metadata.TemplateID]metadata.Block
}

// NewTemplateCache constructs a cache backed by reg (the composable
// metadata registry) and info (this camera's static characteristics, used
// to pick FPS ranges that the device actually supports).
func NewTemplateCache(reg *metadata.Registry, info *StaticInfo) *TemplateCache {
	return &TemplateCache{reg: reg, info: info, cache: make(map[metadata.TemplateID]metadata.Block)}
}

// Get returns the default metadata block for tid, building it on first
// request. ZERO_SHUTTER_LAG and MANUAL are not implemented by this core and
// always fail with NotSupported.
func (tc *TemplateCache) Get(tid metadata.TemplateID) (metadata.Block, error) {
	if tid <= 0 || tid >= metadata.TemplateCount {
		return nil, halerr.InvalidArgument(nil, "unknown template id")
	}
	if tid == metadata.TemplateZeroShutterLag || tid == metadata.TemplateManual {
		return nil, halerr.NotSupported(nil, "template not available on this core")
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if b, ok := tc.cache[tid]; ok {
		return b, nil
	}

	out := metadata.NewBlock()
	if err := tc.reg.FillTemplate(tid, out); err != nil {
		return nil, err
	}
	overlayIntent(out, tid)
	overlayFPSRange(out, tid, tc.info)

	tc.cache[tid] = out
	return out, nil
}

func overlayIntent(out metadata.Block, tid metadata.TemplateID) {
	var intent int32
	switch tid {
	case metadata.TemplatePreview:
		intent = intentPreview
	case metadata.TemplateStillCapture:
		intent = intentStillCapture
	case metadata.TemplateVideoRecord:
		intent = intentVideoRecord
	case metadata.TemplateVideoSnapshot:
		intent = intentVideoSnapshot
	default:
		return
	}
	out.SetInt32(metadata.TagControlCaptureIntent, intent)
}

// overlayFPSRange selects an FPS range from info.FPSRanges for tid and
// writes it as AE_TARGET_FPS_RANGE. Preview, video record, and video
// snapshot want a flat 30fps range; still capture wants a variable range
// near (5, 30), and flat ranges remain candidates for it.
// Selection minimizes L1 distance to the desired (min, max) pair among
// the candidates allowed for this template.
func overlayFPSRange(out metadata.Block, tid metadata.TemplateID, info *StaticInfo) {
	if info == nil || len(info.FPSRanges) == 0 {
		return
	}
	desiredMin, desiredMax := int32(30), int32(30)
	flatOnly := true
	if tid == metadata.TemplateStillCapture {
		desiredMin, desiredMax = 5, 30
		flatOnly = false
	}

	best := info.FPSRanges[0]
	bestDist := -1
	for _, r := range info.FPSRanges {
		if flatOnly && r.Min != r.Max {
			continue
		}
		dist := int(abs32(r.Min-desiredMin)) + int(abs32(r.Max-desiredMax))
		if bestDist == -1 || dist < bestDist {
			best = r
			bestDist = dist
		}
	}
	out.Set(metadata.TagControlAETargetFPSRange, metadata.TypeInt32, []int32{best.Min, best.Max})
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
