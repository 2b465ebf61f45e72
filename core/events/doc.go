// Package events defines the typed Assist pipeline run event contract.
//
// Every event pushed by Home Assistant for an `assist_pipeline/run`
// subscription has the wire shape
//
//	{"type": "<kind>", "data": {...}, "timestamp": "<iso8601>"}
//
// and is decoded by [Decode] into exactly one concrete type. The set of kinds
// is closed; kinds this package does not know decode to [Unknown] so that
// newer servers never break older clients.
//
// Semantics used across the package:
//
//   - Start: a stage began; the payload describes its inputs.
//   - End: a stage finished; the payload carries its output and is merged on
//     top of the matching start payload by the run reducer.
//   - Payload: the raw `data` object exactly as received.
//
// run events
//
//   - RunStart (run-start): run accepted; carries pipeline id, language and
//     runner data.
//   - RunEnd (run-end): run finished.
//   - RunError (error): the pipeline reported a failure (for example
//     stt-no-text-recognized or intent-failed). This is data, not a Go error.
//
// stage events
//
//   - WakeWordStart (wake_word-start) / WakeWordEnd (wake_word-end)
//   - STTStart (stt-start) / STTEnd (stt-end): speech-to-text; the end
//     payload carries the recognized text.
//   - IntentStart (intent-start) / IntentEnd (intent-end): conversation
//     agent; the end payload carries the conversation result and speech.
//   - TTSStart (tts-start) / TTSEnd (tts-end): text-to-speech; the end
//     payload carries a media URL.
package events
