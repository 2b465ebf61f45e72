package assist

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/timmo001/home-assistant-assist-desktop/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrTrackerStopped is returned by [Tracker.Wait] when the tracker loop ended
// before the run finished.
var ErrTrackerStopped = errors.New("tracker stopped before run finished")

// Update is emitted after every folded event.
type Update struct {
	// RunID is a client side id assigned at every run-start.
	RunID string
	Run   *Run
	Event events.Event
	// Err is the ordering diagnostic returned by [Reduce], if any.
	Err error
}

type trackerOptions struct {
	onUpdate   func(Update)
	bufferSize int
}

type TrackerOption func(*trackerOptions)

// WithUpdateCallback registers a callback invoked on the tracker goroutine
// after each event is folded.
func WithUpdateCallback(callback func(Update)) TrackerOption {
	return func(o *trackerOptions) {
		if callback != nil {
			o.onUpdate = callback
		}
	}
}

// WithBufferSize sets how many pushed events may queue before Push blocks.
func WithBufferSize(size int) TrackerOption {
	return func(o *trackerOptions) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// Tracker holds the current run of one pipeline subscription.
type Tracker struct {
	startOptions *RunOptions
	options      trackerOptions

	incoming chan events.Event
	stopped  chan struct{}
	stopOnce sync.Once

	finished   chan struct{}
	finishOnce sync.Once

	mu      sync.RWMutex
	current *Run
	runID   string
}

func NewTracker(startOptions *RunOptions, opts ...TrackerOption) *Tracker {
	options := trackerOptions{
		onUpdate:   func(Update) {},
		bufferSize: 64,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Tracker{
		startOptions: startOptions.clone(),
		options:      options,
		incoming:     make(chan events.Event, options.bufferSize),
		stopped:      make(chan struct{}),
		finished:     make(chan struct{}),
	}
}

// Push hands an event to the tracker loop. Events are folded in the order
// they are pushed. Push blocks while the buffer is full and drops the event
// once the loop has stopped.
func (t *Tracker) Push(event events.Event) {
	select {
	case t.incoming <- event:
	case <-t.stopped:
		logger.Warn("dropped pipeline event, tracker stopped", "kind", string(event.Kind()))
	}
}

// Run folds pushed events until ctx is done. It must be called once.
func (t *Tracker) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "track pipeline run")
	defer span.End()
	defer t.stopOnce.Do(func() { close(t.stopped) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-t.incoming:
			t.fold(span, event)
		}
	}
}

func (t *Tracker) fold(span trace.Span, event events.Event) {
	t.mu.Lock()
	next, err := Reduce(t.current, event, t.startOptions)
	if _, ok := event.(events.RunStart); ok {
		t.runID = uuid.NewString()
		span.SetAttributes(attribute.String("run.id", t.runID), attribute.String("run.pipeline", next.Data.Pipeline))
	}
	t.current = next
	update := Update{RunID: t.runID, Run: next, Event: event, Err: err}
	t.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		logger.Warn("ignored out of order pipeline event",
			"kind", string(event.Kind()),
			"run_id", update.RunID,
			"error", err)
	}

	t.options.onUpdate(update)

	if next != nil {
		if next.Stage == StageError && next.Error != nil {
			span.SetStatus(codes.Error, next.Error.Code)
		}
		if next.Stage.IsTerminal() {
			t.finishOnce.Do(func() { close(t.finished) })
		}
	}
}

// Current returns the latest run record, nil before run-start. The record
// must be treated as read only.
func (t *Tracker) Current() *Run {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// RunID returns the id assigned to the current run.
func (t *Tracker) RunID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.runID
}

// Wait blocks until the run reaches the done or error stage.
func (t *Tracker) Wait(ctx context.Context) (*Run, error) {
	select {
	case <-t.finished:
		return t.Current(), nil
	case <-t.stopped:
		select {
		case <-t.finished:
			return t.Current(), nil
		default:
		}
		return t.Current(), ErrTrackerStopped
	case <-ctx.Done():
		return t.Current(), ctx.Err()
	}
}
