package events

const (
	// KindRunStart identifies the start of a pipeline run.
	KindRunStart Kind = "run-start"
	// KindRunEnd identifies the end of a pipeline run.
	KindRunEnd Kind = "run-end"
	// KindError identifies a pipeline reported failure.
	KindError Kind = "error"
)

type RunnerData struct {
	STTBinaryHandlerID *int    `json:"stt_binary_handler_id"`
	Timeout            float64 `json:"timeout"`
}

type RunStartData struct {
	Pipeline   string     `json:"pipeline"`
	Language   string     `json:"language"`
	RunnerData RunnerData `json:"runner_data"`
}

// RunStart carries the immutable description of a new run.
type RunStart struct {
	Base
	Data RunStartData
}

// NewRunStart creates a run start event.
func NewRunStart(data RunStartData) RunStart {
	return RunStart{Base: newTypedBase(KindRunStart, data), Data: data}
}

// RunEnd marks the end of a run.
type RunEnd struct{ Base }

// NewRunEnd creates a run end event.
func NewRunEnd() RunEnd {
	return RunEnd{Base: NewBase(KindRunEnd, nil)}
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunError carries a failure reported by the pipeline.
type RunError struct {
	Base
	Data ErrorData
}

// NewRunError creates a pipeline error event.
func NewRunError(code, message string) RunError {
	data := ErrorData{Code: code, Message: message}
	return RunError{Base: newTypedBase(KindError, data), Data: data}
}
