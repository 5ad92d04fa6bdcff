// Package planner turns a preset, an encoder preference and probe data into
// an EncodePlan that the ffmpeg package renders into arguments.
//
//   - EncodePlan, AudioPlan, Caps (types.go)
//   - BuildPlan: encoder selection, quality, filters, audio (planner.go)
//   - ResolveQuality: CRF/CQ clamping and per-purpose overrides (quality.go)
//   - BuildVideoFilter, BuildColorOpts: deinterlace, scaling, HDR tags (filter.go)
//   - BuildAudioPlan: AAC target from the preset (audio.go)
package planner
