package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/timmo001/home-assistant-assist-desktop/core/assist"
	"github.com/timmo001/home-assistant-assist-desktop/core/events"
	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant/connection"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type runCommand struct {
	Type string `json:"type"`
	assist.RunOptions
}

// RunAssistPipeline starts a pipeline run and hands every event to handler
// in arrival order. Events whose data does not match the known shape are
// logged and still handed over; frames that cannot be parsed at all are
// dropped. The run is not restored if the socket drops.
func (c *Client) RunAssistPipeline(ctx context.Context, options assist.RunOptions, handler func(events.Event)) (*connection.Subscription, error) {
	ctx, span := tracer.Start(ctx, "run assist pipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.start_stage", string(options.StartStage)),
		attribute.String("run.end_stage", string(options.EndStage)),
		attribute.String("run.pipeline", options.Pipeline))

	if err := options.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid options")
		return nil, err
	}
	if handler == nil {
		handler = func(events.Event) {}
	}

	sub, err := c.Subscribe(ctx, runCommand{Type: "assist_pipeline/run", RunOptions: options}, func(raw json.RawMessage) {
		event, err := events.Decode(raw)
		if event == nil {
			logger.Warn("dropped undecodable pipeline event", "error", err)
			return
		}
		if err != nil {
			logger.Warn("pipeline event data has an unexpected shape", "kind", string(event.Kind()), "error", err)
		}
		handler(event)
	}, connection.WithoutResubscribe())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		return nil, fmt.Errorf("failed to run assist pipeline: %w", err)
	}
	return sub, nil
}

// TrackAssistPipeline starts a run and folds its events into a tracker. The
// tracker loop starts once the run is accepted and stops when ctx is done.
// Events pushed before that wait in the tracker buffer.
func (c *Client) TrackAssistPipeline(ctx context.Context, options assist.RunOptions, opts ...assist.TrackerOption) (*assist.Tracker, *connection.Subscription, error) {
	tracker := assist.NewTracker(&options, opts...)

	sub, err := c.RunAssistPipeline(ctx, options, tracker.Push)
	if err != nil {
		return nil, nil, err
	}

	go func() { _ = tracker.Run(ctx) }()
	return tracker, sub, nil
}
