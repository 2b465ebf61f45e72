package assist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/timmo001/home-assistant-assist-desktop/internal/utils"
)

var ErrInvalidRunOptions = errors.New("invalid run options")

// RunInput is the stage dependent input of a run. Text is used when the run
// starts at intent or tts, SampleRate when it starts at stt or wake_word.
type RunInput struct {
	Text                 string   `json:"text,omitempty"`
	SampleRate           int      `json:"sample_rate,omitempty"`
	Timeout              *float64 `json:"timeout,omitempty"`
	AudioSecondsToBuffer *float64 `json:"audio_seconds_to_buffer,omitempty"`
}

// RunOptions describes which part of a pipeline to run and with what input.
type RunOptions struct {
	StartStage Stage    `json:"start_stage"`
	EndStage   Stage    `json:"end_stage"`
	Input      RunInput `json:"input"`
	// Pipeline is the pipeline id, empty for the preferred pipeline.
	Pipeline       string  `json:"pipeline,omitempty"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

type RunOption func(*RunOptions)

// NewTextRunOptions creates options for a text run processed by the
// conversation agent. The run ends after the intent stage unless
// [WithEndStage] says otherwise.
func NewTextRunOptions(text string, opts ...RunOption) RunOptions {
	options := RunOptions{
		StartStage: StageIntent,
		EndStage:   StageIntent,
		Input:      RunInput{Text: text},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// NewAudioRunOptions creates options for a run starting with speech-to-text.
func NewAudioRunOptions(sampleRate int, opts ...RunOption) RunOptions {
	options := RunOptions{
		StartStage: StageSTT,
		EndStage:   StageTTS,
		Input:      RunInput{SampleRate: sampleRate},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// NewWakeWordRunOptions creates options for a run starting with wake word
// detection.
func NewWakeWordRunOptions(sampleRate int, opts ...RunOption) RunOptions {
	options := RunOptions{
		StartStage: StageWakeWord,
		EndStage:   StageTTS,
		Input:      RunInput{SampleRate: sampleRate},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithStartStage(stage Stage) RunOption {
	return func(o *RunOptions) { o.StartStage = stage }
}

func WithEndStage(stage Stage) RunOption {
	return func(o *RunOptions) { o.EndStage = stage }
}

func WithPipeline(pipelineID string) RunOption {
	return func(o *RunOptions) { o.Pipeline = strings.TrimSpace(pipelineID) }
}

// WithConversationID continues an existing conversation. An empty id clears
// a previously set one.
func WithConversationID(conversationID string) RunOption {
	return func(o *RunOptions) {
		if conversationID == "" {
			o.ConversationID = nil
			return
		}
		o.ConversationID = utils.Ptr(conversationID)
	}
}

func WithWakeWordTimeout(seconds float64) RunOption {
	return func(o *RunOptions) { o.Input.Timeout = utils.Ptr(seconds) }
}

func WithAudioSecondsToBuffer(seconds float64) RunOption {
	return func(o *RunOptions) { o.Input.AudioSecondsToBuffer = utils.Ptr(seconds) }
}

var stageOrder = map[Stage]int{
	StageWakeWord: 0,
	StageSTT:      1,
	StageIntent:   2,
	StageTTS:      3,
}

// Validate checks the start and end stages and that the input matches the
// start stage.
func (o RunOptions) Validate() error {
	start, ok := stageOrder[o.StartStage]
	if !ok {
		return fmt.Errorf("%w: unsupported start stage %q", ErrInvalidRunOptions, o.StartStage)
	}
	end, ok := stageOrder[o.EndStage]
	if !ok || o.EndStage == StageWakeWord {
		return fmt.Errorf("%w: unsupported end stage %q", ErrInvalidRunOptions, o.EndStage)
	}
	if end < start {
		return fmt.Errorf("%w: end stage %q comes before start stage %q", ErrInvalidRunOptions, o.EndStage, o.StartStage)
	}

	switch o.StartStage {
	case StageIntent, StageTTS:
		if strings.TrimSpace(o.Input.Text) == "" {
			return fmt.Errorf("%w: text input required when starting at %q", ErrInvalidRunOptions, o.StartStage)
		}
		if o.Input.SampleRate != 0 {
			return fmt.Errorf("%w: sample rate not allowed when starting at %q", ErrInvalidRunOptions, o.StartStage)
		}
	case StageSTT, StageWakeWord:
		if o.Input.SampleRate <= 0 {
			return fmt.Errorf("%w: sample rate required when starting at %q", ErrInvalidRunOptions, o.StartStage)
		}
		if o.Input.Text != "" {
			return fmt.Errorf("%w: text input not allowed when starting at %q", ErrInvalidRunOptions, o.StartStage)
		}
	}

	if o.StartStage != StageWakeWord && (o.Input.Timeout != nil || o.Input.AudioSecondsToBuffer != nil) {
		return fmt.Errorf("%w: wake word input set when starting at %q", ErrInvalidRunOptions, o.StartStage)
	}

	return nil
}

func (o *RunOptions) clone() *RunOptions {
	if o == nil {
		return nil
	}
	cloned := *o
	if o.ConversationID != nil {
		cloned.ConversationID = utils.Ptr(*o.ConversationID)
	}
	if o.Input.Timeout != nil {
		cloned.Input.Timeout = utils.Ptr(*o.Input.Timeout)
	}
	if o.Input.AudioSecondsToBuffer != nil {
		cloned.Input.AudioSecondsToBuffer = utils.Ptr(*o.Input.AudioSecondsToBuffer)
	}
	return &cloned
}
