package homeassistant

import (
	"context"
	"fmt"

	"github.com/timmo001/home-assistant-assist-desktop/core/assist"
)

type command struct {
	Type string `json:"type"`
}

type pipelineCommand struct {
	Type       string `json:"type"`
	PipelineID string `json:"pipeline_id,omitempty"`
}

type pipelineMutationCommand struct {
	Type       string `json:"type"`
	PipelineID string `json:"pipeline_id,omitempty"`
	assist.PipelineMutableParams
}

func (c *Client) ListAssistPipelines(ctx context.Context) (assist.PipelineList, error) {
	var list assist.PipelineList
	if err := c.SendRequest(ctx, command{Type: "assist_pipeline/pipeline/list"}, &list); err != nil {
		return assist.PipelineList{}, fmt.Errorf("failed to list assist pipelines: %w", err)
	}
	return list, nil
}

// GetAssistPipeline fetches a pipeline by id. An empty id returns the
// preferred pipeline.
func (c *Client) GetAssistPipeline(ctx context.Context, pipelineID string) (assist.Pipeline, error) {
	var pipeline assist.Pipeline
	if err := c.SendRequest(ctx, pipelineCommand{Type: "assist_pipeline/pipeline/get", PipelineID: pipelineID}, &pipeline); err != nil {
		return assist.Pipeline{}, fmt.Errorf("failed to get assist pipeline: %w", err)
	}
	return pipeline, nil
}

func (c *Client) CreateAssistPipeline(ctx context.Context, params assist.PipelineMutableParams) (assist.Pipeline, error) {
	var pipeline assist.Pipeline
	if err := c.SendRequest(ctx, pipelineMutationCommand{
		Type:                  "assist_pipeline/pipeline/create",
		PipelineMutableParams: params,
	}, &pipeline); err != nil {
		return assist.Pipeline{}, fmt.Errorf("failed to create assist pipeline: %w", err)
	}
	return pipeline, nil
}

func (c *Client) UpdateAssistPipeline(ctx context.Context, pipelineID string, params assist.PipelineMutableParams) (assist.Pipeline, error) {
	var pipeline assist.Pipeline
	if err := c.SendRequest(ctx, pipelineMutationCommand{
		Type:                  "assist_pipeline/pipeline/update",
		PipelineID:            pipelineID,
		PipelineMutableParams: params,
	}, &pipeline); err != nil {
		return assist.Pipeline{}, fmt.Errorf("failed to update assist pipeline %q: %w", pipelineID, err)
	}
	return pipeline, nil
}

func (c *Client) SetPreferredAssistPipeline(ctx context.Context, pipelineID string) error {
	if err := c.SendRequest(ctx, pipelineCommand{Type: "assist_pipeline/pipeline/set_preferred", PipelineID: pipelineID}, nil); err != nil {
		return fmt.Errorf("failed to set preferred assist pipeline %q: %w", pipelineID, err)
	}
	return nil
}

func (c *Client) DeleteAssistPipeline(ctx context.Context, pipelineID string) error {
	if err := c.SendRequest(ctx, pipelineCommand{Type: "assist_pipeline/pipeline/delete", PipelineID: pipelineID}, nil); err != nil {
		return fmt.Errorf("failed to delete assist pipeline %q: %w", pipelineID, err)
	}
	return nil
}

func (c *Client) ListAssistPipelineLanguages(ctx context.Context) ([]string, error) {
	var result struct {
		Languages []string `json:"languages"`
	}
	if err := c.SendRequest(ctx, command{Type: "assist_pipeline/language/list"}, &result); err != nil {
		return nil, fmt.Errorf("failed to list assist pipeline languages: %w", err)
	}
	return result.Languages, nil
}
