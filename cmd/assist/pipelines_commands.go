package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/timmo001/home-assistant-assist-desktop/core/assist"
	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant"
	"github.com/timmo001/home-assistant-assist-desktop/internal/utils"
)

func newPipelinesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Manage Assist pipelines",
	}

	cmd.AddCommand(newPipelinesListCommand(ctx))
	cmd.AddCommand(newPipelinesGetCommand(ctx))
	cmd.AddCommand(newPipelinesCreateCommand(ctx))
	cmd.AddCommand(newPipelinesUpdateCommand(ctx))
	cmd.AddCommand(newPipelinesDeleteCommand(ctx))
	cmd.AddCommand(newPipelinesSetPreferredCommand(ctx))
	cmd.AddCommand(newPipelinesLanguagesCommand(ctx))

	return cmd
}

func newPipelinesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines, the preferred one marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				list, err := client.ListAssistPipelines(runCtx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPipelines(list))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newPipelinesGetCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get [pipeline-id]",
		Short: "Show a pipeline, the preferred one when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pipelineID string
			if len(args) == 1 {
				pipelineID = args[0]
			}
			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				pipeline, err := client.GetAssistPipeline(runCtx, pipelineID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, pipeline)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPipeline(pipeline))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newPipelinesCreateCommand(ctx *commandContext) *cobra.Command {
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var params assist.PipelineMutableParams
			flags.apply(cmd.Flags(), &params)
			if params.Name == "" || params.Language == "" || params.ConversationEngine == "" {
				return fmt.Errorf("--name, --language and --conversation-engine are required")
			}

			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				pipeline, err := client.CreateAssistPipeline(runCtx, params)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created pipeline %s (%s)\n", pipeline.Name, pipeline.ID)
				return nil
			})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newPipelinesUpdateCommand(ctx *commandContext) *cobra.Command {
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "update <pipeline-id>",
		Short: "Update the given fields of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipelineID := args[0]
			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				current, err := client.GetAssistPipeline(runCtx, pipelineID)
				if err != nil {
					return err
				}
				params, err := assist.MutableParamsFrom(current)
				if err != nil {
					return err
				}
				flags.apply(cmd.Flags(), &params)

				pipeline, err := client.UpdateAssistPipeline(runCtx, pipelineID, params)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated pipeline %s (%s)\n", pipeline.Name, pipeline.ID)
				return nil
			})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newPipelinesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <pipeline-id>",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				if err := client.DeleteAssistPipeline(runCtx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted pipeline %s\n", args[0])
				return nil
			})
		},
	}
}

func newPipelinesSetPreferredCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-preferred <pipeline-id>",
		Short: "Make a pipeline the preferred one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				if err := client.SetPreferredAssistPipeline(runCtx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Preferred pipeline is now %s\n", args[0])
				return nil
			})
		},
	}
}

func newPipelinesLanguagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List languages supported by every pipeline component",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				languages, err := client.ListAssistPipelineLanguages(runCtx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(languages, "\n"))
				return nil
			})
		},
	}
}

// pipelineFlags maps command line flags onto pipeline fields. Only flags the
// user set are applied; an empty value clears an optional field.
type pipelineFlags struct {
	name                 string
	language             string
	conversationEngine   string
	conversationLanguage string
	sttEngine            string
	sttLanguage          string
	ttsEngine            string
	ttsLanguage          string
	ttsVoice             string
	wakeWordEntity       string
	wakeWordID           string
}

func (f *pipelineFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.name, "name", "", "Pipeline name")
	flags.StringVar(&f.language, "language", "", "Pipeline language")
	flags.StringVar(&f.conversationEngine, "conversation-engine", "", "Conversation agent entity")
	flags.StringVar(&f.conversationLanguage, "conversation-language", "", "Conversation language")
	flags.StringVar(&f.sttEngine, "stt-engine", "", "Speech-to-text engine")
	flags.StringVar(&f.sttLanguage, "stt-language", "", "Speech-to-text language")
	flags.StringVar(&f.ttsEngine, "tts-engine", "", "Text-to-speech engine")
	flags.StringVar(&f.ttsLanguage, "tts-language", "", "Text-to-speech language")
	flags.StringVar(&f.ttsVoice, "tts-voice", "", "Text-to-speech voice")
	flags.StringVar(&f.wakeWordEntity, "wake-word-entity", "", "Wake word entity")
	flags.StringVar(&f.wakeWordID, "wake-word-id", "", "Wake word id")
}

func (f *pipelineFlags) apply(flags *pflag.FlagSet, params *assist.PipelineMutableParams) {
	if flags.Changed("name") {
		params.Name = strings.TrimSpace(f.name)
	}
	if flags.Changed("language") {
		params.Language = strings.TrimSpace(f.language)
	}
	if flags.Changed("conversation-engine") {
		params.ConversationEngine = strings.TrimSpace(f.conversationEngine)
	}

	optionalFlags := []struct {
		name   string
		value  string
		target **string
	}{
		{"conversation-language", f.conversationLanguage, &params.ConversationLanguage},
		{"stt-engine", f.sttEngine, &params.STTEngine},
		{"stt-language", f.sttLanguage, &params.STTLanguage},
		{"tts-engine", f.ttsEngine, &params.TTSEngine},
		{"tts-language", f.ttsLanguage, &params.TTSLanguage},
		{"tts-voice", f.ttsVoice, &params.TTSVoice},
		{"wake-word-entity", f.wakeWordEntity, &params.WakeWordEntity},
		{"wake-word-id", f.wakeWordID, &params.WakeWordID},
	}
	for _, flag := range optionalFlags {
		if !flags.Changed(flag.name) {
			continue
		}
		value := strings.TrimSpace(flag.value)
		if value == "" {
			*flag.target = nil
			continue
		}
		*flag.target = utils.Ptr(value)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
