package hatest

import (
	"testing"
	"time"
)

// PipelineEvent builds an assist pipeline event as pushed by Home Assistant.
func PipelineEvent(eventType string, data any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.999999"),
	}
}

// PipelineRunHandler acknowledges an assist_pipeline/run command and then
// pushes pipelineEvents on the same subscription id.
func PipelineRunHandler(pipelineEvents ...map[string]any) Handler {
	return func(session *Session, msg Message) {
		session.Result(msg.ID, nil)
		for _, event := range pipelineEvents {
			session.Event(msg.ID, event)
		}
	}
}

// TextRunEvents is the event sequence of a successful text run ending at
// the intent stage.
func TextRunEvents(text, speech string) []map[string]any {
	return []map[string]any{
		PipelineEvent("run-start", map[string]any{
			"pipeline":    "01hpipeline",
			"language":    "en",
			"runner_data": map[string]any{"stt_binary_handler_id": nil, "timeout": 300},
		}),
		PipelineEvent("intent-start", map[string]any{
			"engine":       "conversation.home_assistant",
			"language":     "en",
			"intent_input": text,
		}),
		PipelineEvent("intent-end", map[string]any{
			"intent_output": map[string]any{
				"conversation_id": "01hconversation",
				"response": map[string]any{
					"response_type": "action_done",
					"language":      "en",
					"speech": map[string]any{
						"plain": map[string]any{"speech": speech, "extra_data": nil},
					},
					"data": map[string]any{"targets": []any{}, "success": []any{}, "failed": []any{}},
				},
			},
		}),
		PipelineEvent("run-end", nil),
	}
}

// WaitFor polls condition until it holds or timeout elapses.
func WaitFor(t testing.TB, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}
