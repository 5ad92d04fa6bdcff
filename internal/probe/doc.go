// Package probe provides ffprobe-based media inspection and typed result
// structures. A single JSON call per file yields everything the pipeline
// and the batch scanner need: dimensions, frame rate, duration, codec and
// color metadata.
//
//   - FormatInfo, VideoStream, AudioStream, ProbeResult (types.go)
//   - Prober.Probe, ParseJSON (prober.go)
//   - HDRType, IsInterlaced, FPS (streams.go)
//   - ValidateMaster (validate.go)
package probe
