package assist

import (
	"errors"
	"fmt"
	"slices"

	"github.com/timmo001/home-assistant-assist-desktop/core/events"
	"github.com/timmo001/home-assistant-assist-desktop/internal/utils"
)

var (
	// ErrNoActiveRun is returned when an event other than run-start arrives
	// before any run-start.
	ErrNoActiveRun = errors.New("pipeline event received before run start")
	// ErrStageNotStarted is returned when a stage end event arrives without
	// the matching start event.
	ErrStageNotStarted = errors.New("pipeline stage ended before it started")
)

// Reduce folds event over previous and returns the next run record.
//
// A run-start event always produces a brand-new record carrying a copy of
// startOptions. Any other event with a nil previous run returns nil together
// with [ErrNoActiveRun]. An end event without a matching start sub-record is
// appended to the event log but no sub-record is synthesized; the returned
// error wraps [ErrStageNotStarted]. Errors are diagnostics only: the returned
// run is always the correct next state.
//
// Once a run is in the error stage it stays there; later events are still
// recorded.
func Reduce(previous *Run, event events.Event, startOptions *RunOptions) (*Run, error) {
	if start, ok := event.(events.RunStart); ok {
		return &Run{
			InitOptions: startOptions.clone(),
			Stage:       StageReady,
			Data:        start.Data,
			Events:      []events.Event{event},
		}, nil
	}

	if previous == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoActiveRun, event.Kind())
	}

	next := *previous
	var err error

	switch e := event.(type) {
	case events.WakeWordStart:
		next.enterStage(StageWakeWord)
		next.WakeWord = newWakeWordStage(e)
	case events.WakeWordEnd:
		if next.WakeWord == nil {
			err = stageNotStarted(StageWakeWord)
			break
		}
		next.WakeWord = next.WakeWord.withEnd(e)
	case events.STTStart:
		next.enterStage(StageSTT)
		next.STT = newSTTStage(e)
	case events.STTEnd:
		if next.STT == nil {
			err = stageNotStarted(StageSTT)
			break
		}
		next.STT = next.STT.withEnd(e)
	case events.IntentStart:
		next.enterStage(StageIntent)
		next.Intent = newIntentStage(e)
	case events.IntentEnd:
		if next.Intent == nil {
			err = stageNotStarted(StageIntent)
			break
		}
		next.Intent = next.Intent.withEnd(e)
	case events.TTSStart:
		next.enterStage(StageTTS)
		next.TTS = newTTSStage(e)
	case events.TTSEnd:
		if next.TTS == nil {
			err = stageNotStarted(StageTTS)
			break
		}
		next.TTS = next.TTS.withEnd(e)
	case events.RunEnd:
		next.enterStage(StageDone)
	case events.RunError:
		next.Stage = StageError
		next.Error = utils.Ptr(e.Data)
	case events.Unknown:
		// Newer servers may send kinds we do not model; only the log changes.
	default:
		// Foreign Event implementations are treated like Unknown.
	}

	next.Events = append(slices.Clip(previous.Events), event)
	return &next, err
}

// Fold reduces a sequence of events starting from no run. Ordering
// violations are joined into the returned error.
func Fold(startOptions *RunOptions, sequence ...events.Event) (*Run, error) {
	var (
		run  *Run
		errs []error
	)
	for _, event := range sequence {
		var err error
		run, err = Reduce(run, event, startOptions)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return run, errors.Join(errs...)
}

func (r *Run) enterStage(stage Stage) {
	if r.Stage == StageError {
		return
	}
	r.Stage = stage
}

func stageNotStarted(stage Stage) error {
	return fmt.Errorf("%w: %s", ErrStageNotStarted, stage)
}
