package events

import "encoding/json"

const (
	KindWakeWordStart Kind = "wake_word-start"
	KindWakeWordEnd   Kind = "wake_word-end"
	KindSTTStart      Kind = "stt-start"
	KindSTTEnd        Kind = "stt-end"
	KindIntentStart   Kind = "intent-start"
	KindIntentEnd     Kind = "intent-end"
	KindTTSStart      Kind = "tts-start"
	KindTTSEnd        Kind = "tts-end"
)

// SpeechMetadata describes the audio format of a speech stage input.
type SpeechMetadata struct {
	Language   string `json:"language"`
	Format     string `json:"format"`
	Codec      string `json:"codec"`
	BitRate    int    `json:"bit_rate"`
	SampleRate int    `json:"sample_rate"`
	Channel    int    `json:"channel"`
}

type WakeWordStartData struct {
	Engine   string         `json:"engine"`
	Metadata SpeechMetadata `json:"metadata"`
}

type WakeWordOutput struct {
	WakeWordID string  `json:"ww_id"`
	Timestamp  float64 `json:"timestamp"`
}

type WakeWordEndData struct {
	WakeWordOutput *WakeWordOutput `json:"wake_word_output"`
}

type WakeWordStart struct {
	Base
	Data WakeWordStartData
}

func NewWakeWordStart(data WakeWordStartData) WakeWordStart {
	return WakeWordStart{Base: newTypedBase(KindWakeWordStart, data), Data: data}
}

type WakeWordEnd struct {
	Base
	Data WakeWordEndData
}

func NewWakeWordEnd(data WakeWordEndData) WakeWordEnd {
	return WakeWordEnd{Base: newTypedBase(KindWakeWordEnd, data), Data: data}
}

type STTStartData struct {
	Engine   string         `json:"engine"`
	Metadata SpeechMetadata `json:"metadata"`
}

type STTOutput struct {
	Text string `json:"text"`
}

type STTEndData struct {
	STTOutput *STTOutput `json:"stt_output"`
}

type STTStart struct {
	Base
	Data STTStartData
}

func NewSTTStart(data STTStartData) STTStart {
	return STTStart{Base: newTypedBase(KindSTTStart, data), Data: data}
}

type STTEnd struct {
	Base
	Data STTEndData
}

func NewSTTEnd(data STTEndData) STTEnd {
	return STTEnd{Base: newTypedBase(KindSTTEnd, data), Data: data}
}

type IntentStartData struct {
	Engine      string `json:"engine"`
	Language    string `json:"language"`
	IntentInput string `json:"intent_input"`
}

// IntentTarget is an entity, area or similar that an intent acted on.
type IntentTarget struct {
	Type string  `json:"type"`
	Name string  `json:"name"`
	ID   *string `json:"id"`
}

// IntentResultData holds the response data. Targets are set for action_done
// and query_answer responses, Code for error responses.
type IntentResultData struct {
	Targets []IntentTarget `json:"targets,omitempty"`
	Success []IntentTarget `json:"success,omitempty"`
	Failed  []IntentTarget `json:"failed,omitempty"`
	Code    string         `json:"code,omitempty"`
}

type SpeechText struct {
	Speech    string          `json:"speech"`
	ExtraData json.RawMessage `json:"extra_data,omitempty"`
}

type IntentSpeech struct {
	Plain *SpeechText `json:"plain,omitempty"`
	SSML  *SpeechText `json:"ssml,omitempty"`
}

type IntentResponse struct {
	ResponseType string           `json:"response_type"`
	Language     string           `json:"language"`
	Speech       *IntentSpeech    `json:"speech"`
	Data         IntentResultData `json:"data"`
}

// ConversationResult is the output of the conversation agent.
type ConversationResult struct {
	ConversationID *string        `json:"conversation_id"`
	Response       IntentResponse `json:"response"`
}

// SpeechText returns the plain speech of the response, falling back to SSML.
func (r ConversationResult) SpeechText() string {
	if r.Response.Speech == nil {
		return ""
	}
	if r.Response.Speech.Plain != nil {
		return r.Response.Speech.Plain.Speech
	}
	if r.Response.Speech.SSML != nil {
		return r.Response.Speech.SSML.Speech
	}
	return ""
}

type IntentEndData struct {
	IntentOutput *ConversationResult `json:"intent_output"`
}

type IntentStart struct {
	Base
	Data IntentStartData
}

func NewIntentStart(data IntentStartData) IntentStart {
	return IntentStart{Base: newTypedBase(KindIntentStart, data), Data: data}
}

type IntentEnd struct {
	Base
	Data IntentEndData
}

func NewIntentEnd(data IntentEndData) IntentEnd {
	return IntentEnd{Base: newTypedBase(KindIntentEnd, data), Data: data}
}

type TTSStartData struct {
	Engine   string `json:"engine"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
	TTSInput string `json:"tts_input"`
}

// MediaSource is a resolved media URL, usually relative to the instance.
type MediaSource struct {
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
}

type TTSEndData struct {
	TTSOutput *MediaSource `json:"tts_output"`
}

type TTSStart struct {
	Base
	Data TTSStartData
}

func NewTTSStart(data TTSStartData) TTSStart {
	return TTSStart{Base: newTypedBase(KindTTSStart, data), Data: data}
}

type TTSEnd struct {
	Base
	Data TTSEndData
}

func NewTTSEnd(data TTSEndData) TTSEnd {
	return TTSEnd{Base: newTypedBase(KindTTSEnd, data), Data: data}
}

// Unknown carries an event of a kind this package does not model.
type Unknown struct{ Base }

// NewUnknown creates an event of an arbitrary kind with a raw payload.
func NewUnknown(kind Kind, payload json.RawMessage) Unknown {
	return Unknown{Base: NewBase(kind, payload)}
}
