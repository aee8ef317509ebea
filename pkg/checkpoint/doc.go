// Package checkpoint remembers how far each target was scanned so that an
// incremental run can stop at the day the previous clean run started from.
//
// One JSON file per target is kept under the state directory and replaced
// atomically on every save. A checkpoint is only written after a target
// finished without a failed search, so a gap is never skipped.
package checkpoint
