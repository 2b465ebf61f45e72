package events

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeProducesTypedEvents(t *testing.T) {
	testCases := []struct {
		name  string
		raw   string
		check func(t *testing.T, event Event)
	}{
		{
			name: "run start",
			raw:  `{"type":"run-start","data":{"pipeline":"p1","language":"en","runner_data":{"stt_binary_handler_id":1,"timeout":300}},"timestamp":"2023-05-04T13:37:40.123456+00:00"}`,
			check: func(t *testing.T, event Event) {
				e, ok := event.(RunStart)
				if !ok {
					t.Fatalf("expected RunStart, got %T", event)
				}
				if e.Data.Pipeline != "p1" || e.Data.Language != "en" {
					t.Fatalf("unexpected run start data %+v", e.Data)
				}
				if e.Data.RunnerData.STTBinaryHandlerID == nil || *e.Data.RunnerData.STTBinaryHandlerID != 1 {
					t.Fatalf("expected stt binary handler id 1, got %v", e.Data.RunnerData.STTBinaryHandlerID)
				}
				want := time.Date(2023, 5, 4, 13, 37, 40, 123456000, time.UTC)
				if !e.Timestamp().Equal(want) {
					t.Fatalf("expected timestamp %v, got %v", want, e.Timestamp())
				}
			},
		},
		{
			name: "run end with null data",
			raw:  `{"type":"run-end","data":null}`,
			check: func(t *testing.T, event Event) {
				if _, ok := event.(RunEnd); !ok {
					t.Fatalf("expected RunEnd, got %T", event)
				}
				if string(event.Payload()) != "{}" {
					t.Fatalf("expected normalized payload, got %q", event.Payload())
				}
			},
		},
		{
			name: "error",
			raw:  `{"type":"error","data":{"code":"stt-no-text-recognized","message":"No text recognized"}}`,
			check: func(t *testing.T, event Event) {
				e, ok := event.(RunError)
				if !ok {
					t.Fatalf("expected RunError, got %T", event)
				}
				if e.Data.Code != "stt-no-text-recognized" {
					t.Fatalf("unexpected error code %q", e.Data.Code)
				}
			},
		},
		{
			name: "wake word end",
			raw:  `{"type":"wake_word-end","data":{"wake_word_output":{"ww_id":"ok_nabu","timestamp":1200}}}`,
			check: func(t *testing.T, event Event) {
				e, ok := event.(WakeWordEnd)
				if !ok {
					t.Fatalf("expected WakeWordEnd, got %T", event)
				}
				if e.Data.WakeWordOutput == nil || e.Data.WakeWordOutput.WakeWordID != "ok_nabu" {
					t.Fatalf("unexpected wake word output %+v", e.Data.WakeWordOutput)
				}
			},
		},
		{
			name: "stt start",
			raw:  `{"type":"stt-start","data":{"engine":"stt.whisper","metadata":{"language":"en","format":"wav","codec":"pcm","bit_rate":16,"sample_rate":16000,"channel":1}}}`,
			check: func(t *testing.T, event Event) {
				e, ok := event.(STTStart)
				if !ok {
					t.Fatalf("expected STTStart, got %T", event)
				}
				if e.Data.Metadata.SampleRate != 16000 {
					t.Fatalf("expected sample rate 16000, got %d", e.Data.Metadata.SampleRate)
				}
			},
		},
		{
			name: "intent end",
			raw:  `{"type":"intent-end","data":{"intent_output":{"conversation_id":null,"response":{"response_type":"action_done","language":"en","speech":{"plain":{"speech":"Turned on the lights","extra_data":null}},"data":{"targets":[],"success":[{"type":"entity","name":"Lights","id":"light.kitchen"}],"failed":[]}}}}}`,
			check: func(t *testing.T, event Event) {
				e, ok := event.(IntentEnd)
				if !ok {
					t.Fatalf("expected IntentEnd, got %T", event)
				}
				if e.Data.IntentOutput == nil {
					t.Fatalf("expected intent output")
				}
				if got := e.Data.IntentOutput.SpeechText(); got != "Turned on the lights" {
					t.Fatalf("unexpected speech %q", got)
				}
				if len(e.Data.IntentOutput.Response.Data.Success) != 1 {
					t.Fatalf("expected one success target, got %+v", e.Data.IntentOutput.Response.Data)
				}
			},
		},
		{
			name: "tts end",
			raw:  `{"type":"tts-end","data":{"tts_output":{"url":"/api/tts_proxy/abc.mp3","mime_type":"audio/mpeg"}}}`,
			check: func(t *testing.T, event Event) {
				e, ok := event.(TTSEnd)
				if !ok {
					t.Fatalf("expected TTSEnd, got %T", event)
				}
				if e.Data.TTSOutput == nil || e.Data.TTSOutput.MIMEType != "audio/mpeg" {
					t.Fatalf("unexpected tts output %+v", e.Data.TTSOutput)
				}
			},
		},
		{
			name: "unknown kind",
			raw:  `{"type":"stt-vad-start","data":{"timestamp":100}}`,
			check: func(t *testing.T, event Event) {
				if _, ok := event.(Unknown); !ok {
					t.Fatalf("expected Unknown, got %T", event)
				}
				if event.Kind() != "stt-vad-start" {
					t.Fatalf("expected kind to be preserved, got %q", event.Kind())
				}
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			event, err := Decode([]byte(testCase.raw))
			if err != nil {
				t.Fatalf("expected decode to succeed, got %v", err)
			}
			testCase.check(t, event)
		})
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	testCases := map[string]string{
		"not json":     `{"type":`,
		"missing type": `{"data":{}}`,
	}

	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(raw)); err == nil {
				t.Fatalf("expected decode error for %s", raw)
			}
		})
	}
}

func TestDecodeKeepsEventWithMalformedData(t *testing.T) {
	raw := `{"type":"stt-start","data":{"engine":"stt.whisper","metadata":{"sample_rate":"16000"}},"timestamp":"2025-01-01T10:00:00.000000"}`

	event, err := Decode([]byte(raw))
	if !errors.Is(err, ErrMalformedData) {
		t.Fatalf("expected malformed data error, got %v", err)
	}
	start, ok := event.(STTStart)
	if !ok {
		t.Fatalf("expected STTStart, got %T", event)
	}
	if start.Data.Engine != "stt.whisper" {
		t.Fatalf("expected decodable fields to be kept, got %+v", start.Data)
	}
	if len(Fields(start)) != 2 {
		t.Fatalf("expected raw payload to be kept, got %v", Fields(start))
	}
}

func TestEncodeRoundTripsKindAndPayload(t *testing.T) {
	original := NewIntentStart(IntentStartData{Engine: "conversation.home_assistant", Language: "en", IntentInput: "turn on lights"})

	raw, err := Encode(original)
	if err != nil {
		t.Fatalf("expected encode to succeed, got %v", err)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}

	intentStart, ok := decoded.(IntentStart)
	if !ok {
		t.Fatalf("expected IntentStart, got %T", decoded)
	}
	if intentStart.Data != original.Data {
		t.Fatalf("expected %+v, got %+v", original.Data, intentStart.Data)
	}
}
