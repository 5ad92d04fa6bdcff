// Package ffmpeg builds and executes ffmpeg commands. It provides the
// concrete Encoder and Detector used by the pipeline and the batch
// workflows.
//
//   - Build* argument builders sharing one preamble (builder.go)
//   - Runner: timeout, progress parsing, stderr capture (executor.go)
//   - Classify: short reasons for common stderr failures (errors.go)
//   - Encoder: media.Encoder over the builders, incl. concat (encoder.go)
//   - SceneDetector: media.Detector using the scene score filter (detect.go)
//   - ProbeCaps: NVENC/CUDA discovery (caps.go)
package ffmpeg
