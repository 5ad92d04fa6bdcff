package planner

import (
	"fmt"

	"github.com/backmassage/framevault/internal/config"
)

// QualityResult holds the resolved quality for one output.
type QualityResult struct {
	CRF  int
	Note string
}

// Fixed R&D qualities.
const (
	hqCRF  = 17
	webCRF = 23
)

// CRF clamp range: below 12 files balloon with no visible gain, above 35
// clips are unusable for archive review.
const (
	crfMin = 12
	crfMax = 35
)

// ResolveQuality returns the CRF for purpose. Proxy, clip and overlay
// outputs follow the preset; R&D outputs use fixed values.
func ResolveQuality(v config.Video, purpose Purpose) QualityResult {
	switch purpose {
	case PurposeHQ:
		return QualityResult{CRF: hqCRF, Note: fmt.Sprintf("r&d high-res (crf=%d)", hqCRF)}
	case PurposeWeb:
		return QualityResult{CRF: webCRF, Note: fmt.Sprintf("r&d compressed (crf=%d)", webCRF)}
	}
	crf := clamp(v.CRF, crfMin, crfMax)
	note := fmt.Sprintf("preset (crf=%d, preset=%s)", crf, v.Preset)
	if crf != v.CRF {
		note = fmt.Sprintf("preset crf %d clamped to %d", v.CRF, crf)
	}
	return QualityResult{CRF: crf, Note: note}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
