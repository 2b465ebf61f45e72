package assist

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/timmo001/home-assistant-assist-desktop/core/events"
)

func fullRunEvents() []events.Event {
	return []events.Event{
		events.NewRunStart(events.RunStartData{Pipeline: "p1", Language: "en"}),
		events.NewSTTStart(events.STTStartData{Engine: "e1"}),
		events.NewSTTEnd(events.STTEndData{STTOutput: &events.STTOutput{Text: "turn on lights"}}),
		events.NewIntentStart(events.IntentStartData{Engine: "conversation.home_assistant", Language: "en", IntentInput: "turn on lights"}),
		events.NewIntentEnd(events.IntentEndData{IntentOutput: &events.ConversationResult{
			Response: events.IntentResponse{
				ResponseType: "action_done",
				Language:     "en",
				Speech:       &events.IntentSpeech{Plain: &events.SpeechText{Speech: "Turned on the lights"}},
			},
		}}),
		events.NewTTSStart(events.TTSStartData{Engine: "tts.piper", Language: "en", Voice: "amy", TTSInput: "Turned on the lights"}),
		events.NewTTSEnd(events.TTSEndData{TTSOutput: &events.MediaSource{URL: "/api/tts_proxy/abc.mp3", MIMEType: "audio/mpeg"}}),
		events.NewRunEnd(),
	}
}

func TestFullRunScenario(t *testing.T) {
	options := NewAudioRunOptions(16000)
	sequence := fullRunEvents()

	run, err := Fold(&options, sequence...)
	if err != nil {
		t.Fatalf("expected no ordering errors, got %v", err)
	}

	if run.Stage != StageDone {
		t.Fatalf("expected stage %q, got %q", StageDone, run.Stage)
	}
	if run.STT == nil || !run.STT.Done {
		t.Fatalf("expected stt stage done, got %+v", run.STT)
	}
	if got := run.STT.Text(); got != "turn on lights" {
		t.Fatalf("expected stt text %q, got %q", "turn on lights", got)
	}
	if run.STT.Engine != "e1" {
		t.Fatalf("expected start field engine to survive end merge, got %q", run.STT.Engine)
	}
	if got := run.Intent.Speech(); got != "Turned on the lights" {
		t.Fatalf("unexpected intent speech %q", got)
	}
	if run.TTS == nil || run.TTS.Output == nil || run.TTS.Output.URL != "/api/tts_proxy/abc.mp3" {
		t.Fatalf("unexpected tts stage %+v", run.TTS)
	}
	if len(run.Events) != 8 {
		t.Fatalf("expected 8 events in log, got %d", len(run.Events))
	}
	if run.Data.Pipeline != "p1" {
		t.Fatalf("expected run data pipeline p1, got %q", run.Data.Pipeline)
	}
	if run.InitOptions == nil || run.InitOptions.StartStage != StageSTT {
		t.Fatalf("expected init options to be captured, got %+v", run.InitOptions)
	}
}

func TestEventLogMirrorsInputSequence(t *testing.T) {
	sequence := fullRunEvents()

	for n := 1; n <= len(sequence); n++ {
		run, _ := Fold(nil, sequence[:n]...)
		if len(run.Events) != n {
			t.Fatalf("expected %d events after folding %d, got %d", n, n, len(run.Events))
		}
		for i := range n {
			if run.Events[i].Kind() != sequence[i].Kind() {
				t.Fatalf("event %d: expected kind %q, got %q", i, sequence[i].Kind(), run.Events[i].Kind())
			}
		}
	}
}

func TestReduceDoesNotMutatePrevious(t *testing.T) {
	start, _ := Reduce(nil, events.NewRunStart(events.RunStartData{Pipeline: "p1"}), nil)
	withSTT, _ := Reduce(start, events.NewSTTStart(events.STTStartData{Engine: "e1"}), nil)

	// Give the log spare capacity so an in-place append would be observable.
	withSTT.Events = append(make([]events.Event, 0, 10), withSTT.Events...)

	ended, _ := Reduce(withSTT, events.NewSTTEnd(events.STTEndData{STTOutput: &events.STTOutput{Text: "hello"}}), nil)
	sibling, _ := Reduce(withSTT, events.NewRunEnd(), nil)

	if withSTT.STT.Done {
		t.Fatalf("expected previous stt stage to stay open")
	}
	if withSTT.STT.Output != nil {
		t.Fatalf("expected previous stt output to stay empty")
	}
	if _, ok := withSTT.STT.Attributes["stt_output"]; ok {
		t.Fatalf("expected previous attributes to be untouched")
	}
	if len(withSTT.Events) != 2 {
		t.Fatalf("expected previous log length 2, got %d", len(withSTT.Events))
	}
	if ended.Events[2].Kind() != events.KindSTTEnd {
		t.Fatalf("expected stt-end in derived log, got %q", ended.Events[2].Kind())
	}
	if sibling.Events[2].Kind() != events.KindRunEnd {
		t.Fatalf("expected sibling fold to keep its own event, got %q", sibling.Events[2].Kind())
	}
	if start.Stage != StageReady || len(start.Events) != 1 {
		t.Fatalf("expected first record untouched, got stage %q with %d events", start.Stage, len(start.Events))
	}
}

func TestRunStartDiscardsPreviousRun(t *testing.T) {
	previous, err := Fold(nil, fullRunEvents()...)
	if err != nil {
		t.Fatalf("unexpected fold error %v", err)
	}

	options := NewTextRunOptions("hello")
	next, err := Reduce(previous, events.NewRunStart(events.RunStartData{Pipeline: "p2"}), &options)
	if err != nil {
		t.Fatalf("expected run start to succeed, got %v", err)
	}

	if next.Stage != StageReady {
		t.Fatalf("expected stage ready, got %q", next.Stage)
	}
	if next.STT != nil || next.Intent != nil || next.TTS != nil || next.WakeWord != nil || next.Error != nil {
		t.Fatalf("expected no fields to leak from previous run, got %+v", next)
	}
	if len(next.Events) != 1 || next.Data.Pipeline != "p2" {
		t.Fatalf("expected fresh run for p2, got %d events and pipeline %q", len(next.Events), next.Data.Pipeline)
	}
	if next.InitOptions == &options {
		t.Fatalf("expected init options to be copied")
	}
}

func TestNonStartEventWithoutRunIsIgnored(t *testing.T) {
	testCases := []events.Event{
		events.NewRunEnd(),
		events.NewRunError("intent-failed", "boom"),
		events.NewWakeWordStart(events.WakeWordStartData{}),
		events.NewWakeWordEnd(events.WakeWordEndData{}),
		events.NewSTTStart(events.STTStartData{}),
		events.NewSTTEnd(events.STTEndData{}),
		events.NewIntentStart(events.IntentStartData{}),
		events.NewIntentEnd(events.IntentEndData{}),
		events.NewTTSStart(events.TTSStartData{}),
		events.NewTTSEnd(events.TTSEndData{}),
		events.NewUnknown("stt-vad-start", nil),
	}

	for _, event := range testCases {
		t.Run(string(event.Kind()), func(t *testing.T) {
			run, err := Reduce(nil, event, nil)
			if run != nil {
				t.Fatalf("expected no run, got %+v", run)
			}
			if !errors.Is(err, ErrNoActiveRun) {
				t.Fatalf("expected ErrNoActiveRun, got %v", err)
			}
		})
	}
}

func TestStageStartEndMerge(t *testing.T) {
	run, _ := Fold(nil,
		events.NewRunStart(events.RunStartData{Pipeline: "p1"}),
		events.NewTTSStart(events.TTSStartData{Engine: "tts.piper", Voice: "amy", TTSInput: "hello"}),
	)
	if run.TTS == nil || run.TTS.Done {
		t.Fatalf("expected open tts stage after start, got %+v", run.TTS)
	}
	if run.Stage != StageTTS {
		t.Fatalf("expected stage tts, got %q", run.Stage)
	}

	end := events.TTSEnd{
		Base: events.NewBase(events.KindTTSEnd, json.RawMessage(`{"voice":"brian","tts_output":{"url":"/a.mp3","mime_type":"audio/mpeg"}}`)),
		Data: events.TTSEndData{TTSOutput: &events.MediaSource{URL: "/a.mp3", MIMEType: "audio/mpeg"}},
	}
	run, err := Reduce(run, end, nil)
	if err != nil {
		t.Fatalf("expected end to merge, got %v", err)
	}

	if !run.TTS.Done {
		t.Fatalf("expected tts stage done after end")
	}
	if run.TTS.Voice != "brian" {
		t.Fatalf("expected end field to override start field, got voice %q", run.TTS.Voice)
	}
	if string(run.TTS.Attributes["voice"]) != `"brian"` {
		t.Fatalf("expected merged attribute voice to be brian, got %s", run.TTS.Attributes["voice"])
	}
	if run.TTS.Engine != "tts.piper" || string(run.TTS.Attributes["engine"]) != `"tts.piper"` {
		t.Fatalf("expected start only field engine to survive, got %q / %s", run.TTS.Engine, run.TTS.Attributes["engine"])
	}
	if run.TTS.TTSInput != "hello" {
		t.Fatalf("expected start only field tts_input to survive, got %q", run.TTS.TTSInput)
	}
	if run.Stage != StageTTS {
		t.Fatalf("expected end event not to change stage, got %q", run.Stage)
	}
}

func TestRepeatedStartOverwritesSubRecord(t *testing.T) {
	run, _ := Fold(nil,
		events.NewRunStart(events.RunStartData{}),
		events.NewSTTStart(events.STTStartData{Engine: "first", Metadata: events.SpeechMetadata{SampleRate: 16000}}),
		events.NewSTTEnd(events.STTEndData{STTOutput: &events.STTOutput{Text: "from first"}}),
		events.NewSTTStart(events.STTStartData{Engine: "second"}),
	)

	if run.STT.Engine != "second" {
		t.Fatalf("expected second start to overwrite engine, got %q", run.STT.Engine)
	}
	if run.STT.Done || run.STT.Output != nil {
		t.Fatalf("expected no end artifacts from first start, got done=%t output=%+v", run.STT.Done, run.STT.Output)
	}
	if _, ok := run.STT.Attributes["stt_output"]; ok {
		t.Fatalf("expected merged attributes from first run to be gone")
	}
	if run.STT.Metadata.SampleRate != 0 {
		t.Fatalf("expected metadata from first start to be gone, got %d", run.STT.Metadata.SampleRate)
	}
}

func TestErrorPreservesProgress(t *testing.T) {
	sequence := fullRunEvents()

	for stop := 1; stop < len(sequence)-1; stop++ {
		before, _ := Fold(nil, sequence[:stop]...)
		after, err := Reduce(before, events.NewRunError("intent-failed", "Unexpected error"), nil)
		if err != nil {
			t.Fatalf("expected error event to fold cleanly, got %v", err)
		}

		if after.Stage != StageError {
			t.Fatalf("expected stage error, got %q", after.Stage)
		}
		if after.Error == nil || after.Error.Code != "intent-failed" {
			t.Fatalf("expected error payload, got %+v", after.Error)
		}
		if after.STT != before.STT || after.Intent != before.Intent || after.TTS != before.TTS || after.WakeWord != before.WakeWord {
			t.Fatalf("expected sub-records to be preserved after %d events", stop)
		}
	}
}

func TestErrorStageIsTerminal(t *testing.T) {
	run, _ := Fold(nil,
		events.NewRunStart(events.RunStartData{}),
		events.NewSTTStart(events.STTStartData{}),
		events.NewRunError("stt-no-text-recognized", "No text recognized"),
		events.NewIntentStart(events.IntentStartData{IntentInput: "late"}),
		events.NewRunEnd(),
	)

	if run.Stage != StageError {
		t.Fatalf("expected error stage to be kept, got %q", run.Stage)
	}
	if run.Intent == nil || run.Intent.IntentInput != "late" {
		t.Fatalf("expected late start to still be recorded, got %+v", run.Intent)
	}
	if len(run.Events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(run.Events))
	}
}

func TestEndWithoutStartDoesNotSynthesizeSubRecord(t *testing.T) {
	run, _ := Fold(nil, events.NewRunStart(events.RunStartData{Pipeline: "p1"}))

	next, err := Reduce(run, events.NewIntentEnd(events.IntentEndData{IntentOutput: &events.ConversationResult{}}), nil)
	if !errors.Is(err, ErrStageNotStarted) {
		t.Fatalf("expected ErrStageNotStarted, got %v", err)
	}
	if next == nil {
		t.Fatalf("expected run to survive the violation")
	}
	if next.Intent != nil {
		t.Fatalf("expected no synthesized intent sub-record, got %+v", next.Intent)
	}
	if next.Stage != StageReady {
		t.Fatalf("expected stage unchanged, got %q", next.Stage)
	}
	if len(next.Events) != 2 || next.Events[1].Kind() != events.KindIntentEnd {
		t.Fatalf("expected violating event to be logged, got %d events", len(next.Events))
	}
}

func TestUnknownEventOnlyAppendsToLog(t *testing.T) {
	run, _ := Fold(nil,
		events.NewRunStart(events.RunStartData{}),
		events.NewSTTStart(events.STTStartData{Engine: "e1"}),
	)

	next, err := Reduce(run, events.NewUnknown("stt-vad-start", json.RawMessage(`{"timestamp":10}`)), nil)
	if err != nil {
		t.Fatalf("expected unknown event to be accepted, got %v", err)
	}
	if next == run {
		t.Fatalf("expected a new record value")
	}
	if next.Stage != run.Stage || next.STT != run.STT {
		t.Fatalf("expected no field changes besides the log")
	}
	if len(next.Events) != len(run.Events)+1 {
		t.Fatalf("expected log to grow by one, got %d -> %d", len(run.Events), len(next.Events))
	}
}

type foreignEvent struct{ events.Base }

func TestForeignEventIsTreatedAsUnknown(t *testing.T) {
	run, _ := Fold(nil, events.NewRunStart(events.RunStartData{}))

	next, err := Reduce(run, foreignEvent{Base: events.NewBase("custom", nil)}, nil)
	if err != nil {
		t.Fatalf("expected foreign event to be accepted, got %v", err)
	}
	if next.Stage != StageReady || len(next.Events) != 2 {
		t.Fatalf("expected only the log to change, got stage %q and %d events", next.Stage, len(next.Events))
	}
}

func TestWakeWordRun(t *testing.T) {
	options := NewWakeWordRunOptions(16000, WithWakeWordTimeout(3))
	run, err := Fold(&options,
		events.NewRunStart(events.RunStartData{Pipeline: "p1"}),
		events.NewWakeWordStart(events.WakeWordStartData{Engine: "wake_word.openwakeword"}),
		events.NewWakeWordEnd(events.WakeWordEndData{WakeWordOutput: &events.WakeWordOutput{WakeWordID: "ok_nabu", Timestamp: 1200}}),
		events.NewSTTStart(events.STTStartData{Engine: "stt.whisper"}),
	)
	if err != nil {
		t.Fatalf("unexpected fold error %v", err)
	}

	if run.Stage != StageSTT {
		t.Fatalf("expected stage stt, got %q", run.Stage)
	}
	if !run.WakeWord.Done || run.WakeWord.Output.WakeWordID != "ok_nabu" {
		t.Fatalf("unexpected wake word stage %+v", run.WakeWord)
	}
	if run.InitOptions.Input.Timeout == options.Input.Timeout {
		t.Fatalf("expected init options timeout pointer to be copied")
	}
}
