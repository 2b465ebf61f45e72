package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timmo001/home-assistant-assist-desktop/core/assist"
	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var pipelineID string
	var conversationID string
	var endStage string
	var saveAudio string
	var width int

	cmd := &cobra.Command{
		Use:   "run <text>",
		Short: "Send text through an Assist pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text is required")
			}
			if saveAudio != "" && endStage != string(assist.StageTTS) {
				return fmt.Errorf("--save-audio requires --end-stage %s", assist.StageTTS)
			}

			options := assist.NewTextRunOptions(text,
				assist.WithPipeline(pipelineID),
				assist.WithConversationID(conversationID),
				assist.WithEndStage(assist.Stage(endStage)),
			)
			if err := options.Validate(); err != nil {
				return err
			}

			out := &lockedWriter{w: cmd.OutOrStdout()}

			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				tracker, sub, err := client.TrackAssistPipeline(runCtx, options,
					assist.WithUpdateCallback(func(update assist.Update) {
						if line := renderUpdate(update); line != "" {
							fmt.Fprintln(out, line)
						}
					}))
				if err != nil {
					return err
				}
				defer func() { _ = sub.Unsubscribe(runCtx) }()

				run, err := tracker.Wait(runCtx)
				if err != nil {
					return fmt.Errorf("wait for pipeline run: %w", err)
				}
				fmt.Fprintln(out, renderRun(run, width))

				if run.Stage == assist.StageError {
					return fmt.Errorf("pipeline run failed: %s", run.Error.Code)
				}

				if saveAudio == "" {
					return nil
				}
				if run.TTS == nil || run.TTS.Output == nil {
					return fmt.Errorf("pipeline run produced no audio")
				}
				media, err := client.FetchMedia(runCtx, run.TTS.Output.URL)
				if err != nil {
					return err
				}
				if err := os.WriteFile(saveAudio, media.Content, 0o644); err != nil {
					return fmt.Errorf("write audio: %w", err)
				}
				fmt.Fprintf(out, "Saved %d bytes of %s to %s\n", len(media.Content), media.MIMEType, saveAudio)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&pipelineID, "pipeline", "p", "", "Pipeline id (defaults to the preferred pipeline)")
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "Continue an existing conversation")
	cmd.Flags().StringVar(&endStage, "end-stage", string(assist.StageIntent), "Last stage to run (intent or tts)")
	cmd.Flags().StringVarP(&saveAudio, "save-audio", "o", "", "Write the tts audio to this file")
	cmd.Flags().IntVar(&width, "width", defaultWidth, "Wrap the response at this width")

	return cmd
}
