package assist

import (
	"fmt"

	"github.com/jinzhu/copier"
)

// Pipeline is an Assist pipeline as stored by Home Assistant.
type Pipeline struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Language             string  `json:"language"`
	ConversationEngine   string  `json:"conversation_engine"`
	ConversationLanguage *string `json:"conversation_language"`
	STTEngine            *string `json:"stt_engine"`
	STTLanguage          *string `json:"stt_language"`
	TTSEngine            *string `json:"tts_engine"`
	TTSLanguage          *string `json:"tts_language"`
	TTSVoice             *string `json:"tts_voice"`
	WakeWordEntity       *string `json:"wake_word_entity"`
	WakeWordID           *string `json:"wake_word_id"`
}

// PipelineMutableParams are the fields accepted when creating or updating a
// pipeline. Home Assistant requires every key, so nil values are sent as
// null rather than omitted.
type PipelineMutableParams struct {
	Name                 string  `json:"name"`
	Language             string  `json:"language"`
	ConversationEngine   string  `json:"conversation_engine"`
	ConversationLanguage *string `json:"conversation_language"`
	STTEngine            *string `json:"stt_engine"`
	STTLanguage          *string `json:"stt_language"`
	TTSEngine            *string `json:"tts_engine"`
	TTSLanguage          *string `json:"tts_language"`
	TTSVoice             *string `json:"tts_voice"`
	WakeWordEntity       *string `json:"wake_word_entity"`
	WakeWordID           *string `json:"wake_word_id"`
}

// PipelineList is the result of listing pipelines.
type PipelineList struct {
	Pipelines         []Pipeline `json:"pipelines"`
	PreferredPipeline *string    `json:"preferred_pipeline"`
}

// Preferred returns the preferred pipeline if it is part of the list.
func (l PipelineList) Preferred() (Pipeline, bool) {
	if l.PreferredPipeline == nil {
		return Pipeline{}, false
	}
	for _, pipeline := range l.Pipelines {
		if pipeline.ID == *l.PreferredPipeline {
			return pipeline, true
		}
	}
	return Pipeline{}, false
}

// MutableParamsFrom copies the mutable fields of an existing pipeline, which
// is the starting point for a partial update.
func MutableParamsFrom(pipeline Pipeline) (PipelineMutableParams, error) {
	var params PipelineMutableParams
	if err := copier.CopyWithOption(&params, &pipeline, copier.Option{DeepCopy: true}); err != nil {
		return PipelineMutableParams{}, fmt.Errorf("failed to copy pipeline %q: %w", pipeline.ID, err)
	}
	return params, nil
}
