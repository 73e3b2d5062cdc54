// Package logstream interprets the line-oriented progress output of a
// negotiation-style command.
//
// Interpretation is a pure fold: [Step] takes the previous [State] and one
// line and returns the next State plus zero or more render [Instruction]s.
// [Interpret] folds a whole transcript from the zero State, so replaying the
// same lines always yields the same instructions.
//
// For each line:
//
//  1. Noise (blank lines, separator rules, [DEBUG]/[TRACE] chatter, spinners,
//     "Loading..." style progress, bare percentages) is dropped without
//     touching the State.
//  2. Recognized lines are matched in a fixed priority order: intent, round,
//     proposal, evaluation, commit, rejection, files modified, completion,
//     totals, warning/error. Each carries a typed [Event].
//  3. A phase change emits a section banner before the body line; repeated
//     lines of the same phase do not. Phases only move forward within a
//     round and reset to none at every round banner.
//  4. Anything else passes through verbatim.
package logstream
