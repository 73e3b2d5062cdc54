// Package stage defines the declarative pipeline model: named stages, the
// actions they produce, and the immutable graph that links them.
//
// A [Graph] is compiled once per plan and never mutated. Moving through the
// pipeline replaces the cursor's current stage ID; stage definitions stay
// untouched. [Default] returns the shared seven-stage graph used when no
// plan is active.
package stage
