// Package pipeline drives one archive session through its fixed stages:
//
//	copy_master → optimize_master → detect_scenes → generate_thumbnails →
//	await_selection → generate_clips → extract_stills → compress_stills →
//	finalize
//
// Progress is persisted after every stage, so a session resumes at the
// stage index equal to its completed_operations. The await_selection stage
// suspends on a Selector; cancelling there (or anywhere else) pauses the
// session instead of failing it.
//
//   - Orchestrator, Run, Resume, stage loop (runner.go)
//   - Stage implementations (stages.go)
//   - Artifact counters and the session summary (stats.go)
package pipeline
