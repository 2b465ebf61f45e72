package assist

import (
	"encoding/json"
	"maps"

	"github.com/timmo001/home-assistant-assist-desktop/core/events"
)

type Stage string

const (
	StageReady    Stage = "ready"
	StageWakeWord Stage = "wake_word"
	StageSTT      Stage = "stt"
	StageIntent   Stage = "intent"
	StageTTS      Stage = "tts"
	StageDone     Stage = "done"
	StageError    Stage = "error"
)

// IsTerminal reports whether no further stage transitions are expected.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageError
}

// Run is the aggregate state of one pipeline execution.
type Run struct {
	// InitOptions are the options the run was started with, if known.
	InitOptions *RunOptions
	Stage       Stage
	// Events holds every event folded into the run, in arrival order.
	Events []events.Event
	// Data is the run-start payload.
	Data  events.RunStartData
	Error *events.ErrorData

	WakeWord *WakeWordStage
	STT      *STTStage
	Intent   *IntentStage
	TTS      *TTSStage
}

// Attributes is the merged raw payload of a stage: start fields first, end
// fields on top.
type Attributes map[string]json.RawMessage

func mergeAttributes(base Attributes, update map[string]json.RawMessage) Attributes {
	merged := make(Attributes, len(base)+len(update))
	maps.Copy(merged, base)
	maps.Copy(merged, update)
	return merged
}

// overlay decodes an end payload on top of typed start data so that fields
// present in both take the end value. Shape mismatches leave the start value
// in place; the raw value is still kept in Attributes.
func overlay(target any, event events.Event) {
	_ = json.Unmarshal(event.Payload(), target)
}

type WakeWordStage struct {
	events.WakeWordStartData
	Output     *events.WakeWordOutput
	Attributes Attributes
	Done       bool
}

func newWakeWordStage(start events.WakeWordStart) *WakeWordStage {
	return &WakeWordStage{
		WakeWordStartData: start.Data,
		Attributes:        mergeAttributes(nil, events.Fields(start)),
		Done:              false,
	}
}

func (s WakeWordStage) withEnd(end events.WakeWordEnd) *WakeWordStage {
	overlay(&s.WakeWordStartData, end)
	s.Output = end.Data.WakeWordOutput
	s.Attributes = mergeAttributes(s.Attributes, events.Fields(end))
	s.Done = true
	return &s
}

type STTStage struct {
	events.STTStartData
	Output     *events.STTOutput
	Attributes Attributes
	Done       bool
}

func newSTTStage(start events.STTStart) *STTStage {
	return &STTStage{
		STTStartData: start.Data,
		Attributes:   mergeAttributes(nil, events.Fields(start)),
		Done:         false,
	}
}

func (s STTStage) withEnd(end events.STTEnd) *STTStage {
	overlay(&s.STTStartData, end)
	s.Output = end.Data.STTOutput
	s.Attributes = mergeAttributes(s.Attributes, events.Fields(end))
	s.Done = true
	return &s
}

// Text returns the recognized text, empty until the stage ended.
func (s *STTStage) Text() string {
	if s == nil || s.Output == nil {
		return ""
	}
	return s.Output.Text
}

type IntentStage struct {
	events.IntentStartData
	Output     *events.ConversationResult
	Attributes Attributes
	Done       bool
}

func newIntentStage(start events.IntentStart) *IntentStage {
	return &IntentStage{
		IntentStartData: start.Data,
		Attributes:      mergeAttributes(nil, events.Fields(start)),
		Done:            false,
	}
}

func (s IntentStage) withEnd(end events.IntentEnd) *IntentStage {
	overlay(&s.IntentStartData, end)
	s.Output = end.Data.IntentOutput
	s.Attributes = mergeAttributes(s.Attributes, events.Fields(end))
	s.Done = true
	return &s
}

// Speech returns the agent's spoken response, empty until the stage ended.
func (s *IntentStage) Speech() string {
	if s == nil || s.Output == nil {
		return ""
	}
	return s.Output.SpeechText()
}

type TTSStage struct {
	events.TTSStartData
	Output     *events.MediaSource
	Attributes Attributes
	Done       bool
}

func newTTSStage(start events.TTSStart) *TTSStage {
	return &TTSStage{
		TTSStartData: start.Data,
		Attributes:   mergeAttributes(nil, events.Fields(start)),
		Done:         false,
	}
}

func (s TTSStage) withEnd(end events.TTSEnd) *TTSStage {
	overlay(&s.TTSStartData, end)
	s.Output = end.Data.TTSOutput
	s.Attributes = mergeAttributes(s.Attributes, events.Fields(end))
	s.Done = true
	return &s
}
