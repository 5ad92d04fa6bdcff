// Package naming owns every output path framevault writes: the project
// folder layout, artifact filenames and the in-run collision resolver that
// keeps concurrent workers off the same destination.
package naming
