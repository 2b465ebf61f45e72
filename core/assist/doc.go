// Package assist models Assist pipeline runs and pipelines.
//
// [Reduce] folds one pipeline event at a time over the previous [Run] and is
// pure: the previous record is never modified and every call returns a new
// value. A nil *Run means "no run"; a record only exists after a run-start
// event.
//
// [Tracker] owns the single "current run" slot for one subscription. Events
// are handed to it over a channel and folded on its own goroutine, so the
// record has exactly one writer regardless of which goroutine delivers events.
package assist
