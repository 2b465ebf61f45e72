package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/timmo001/home-assistant-assist-desktop/core/assist"
	"github.com/timmo001/home-assistant-assist-desktop/core/events"
	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant/connection"
)

var (
	stageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	speechStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headingStyle = lipgloss.NewStyle().Bold(true)
)

const defaultWidth = 80

// renderUpdate returns the progress line for a folded event, empty when the
// event is not worth showing.
func renderUpdate(update assist.Update) string {
	if update.Err != nil {
		return mutedStyle.Render(fmt.Sprintf("ignored %s: %v", update.Event.Kind(), update.Err))
	}

	switch event := update.Event.(type) {
	case events.RunStart:
		return stageStyle.Render("run") + " " + mutedStyle.Render(fmt.Sprintf("pipeline %s (%s)", event.Data.Pipeline, event.Data.Language))
	case events.WakeWordStart:
		return stageStyle.Render("wake word") + " " + mutedStyle.Render(event.Data.Engine)
	case events.WakeWordEnd:
		return stageStyle.Render("wake word") + " detected"
	case events.STTStart:
		return stageStyle.Render("stt") + " " + mutedStyle.Render(event.Data.Engine)
	case events.STTEnd:
		return stageStyle.Render("stt") + " " + update.Run.STT.Text()
	case events.IntentStart:
		return stageStyle.Render("intent") + " " + mutedStyle.Render(event.Data.Engine)
	case events.IntentEnd:
		return stageStyle.Render("intent") + " done"
	case events.TTSStart:
		return stageStyle.Render("tts") + " " + mutedStyle.Render(event.Data.Engine)
	case events.TTSEnd:
		return stageStyle.Render("tts") + " done"
	default:
		return ""
	}
}

// renderRun summarizes a finished run: the response speech wrapped to width
// or the pipeline error.
func renderRun(run *assist.Run, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	if run == nil {
		return errorStyle.Render("no run started")
	}

	var b strings.Builder
	if run.Stage == assist.StageError && run.Error != nil {
		b.WriteString(errorStyle.Render("error " + run.Error.Code))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(run.Error.Message, width))
		return b.String()
	}

	if text := run.STT.Text(); text != "" {
		b.WriteString(headingStyle.Render("You"))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(text, width))
		b.WriteString("\n")
	}
	if speech := run.Intent.Speech(); speech != "" {
		b.WriteString(headingStyle.Render("Assist"))
		b.WriteString("\n")
		b.WriteString(speechStyle.Render(wordwrap.String(speech, width)))
		b.WriteString("\n")
	}
	if run.Intent != nil && run.Intent.Output != nil && run.Intent.Output.ConversationID != nil {
		b.WriteString(mutedStyle.Render("conversation " + *run.Intent.Output.ConversationID))
		b.WriteString("\n")
	}
	if run.TTS != nil && run.TTS.Output != nil {
		b.WriteString(mutedStyle.Render("audio " + run.TTS.Output.URL))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderPipelines(list assist.PipelineList) string {
	if len(list.Pipelines) == 0 {
		return mutedStyle.Render("no pipelines")
	}

	var b strings.Builder
	for _, pipeline := range list.Pipelines {
		marker := "  "
		if list.PreferredPipeline != nil && *list.PreferredPipeline == pipeline.ID {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%s  %s  %s\n", marker, headingStyle.Render(pipeline.Name), pipeline.ID, mutedStyle.Render(pipeline.Language))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderPipeline(pipeline assist.Pipeline) string {
	rows := []struct {
		label string
		value string
	}{
		{"id", pipeline.ID},
		{"name", pipeline.Name},
		{"language", pipeline.Language},
		{"conversation engine", pipeline.ConversationEngine},
		{"conversation language", optional(pipeline.ConversationLanguage)},
		{"stt engine", optional(pipeline.STTEngine)},
		{"stt language", optional(pipeline.STTLanguage)},
		{"tts engine", optional(pipeline.TTSEngine)},
		{"tts language", optional(pipeline.TTSLanguage)},
		{"tts voice", optional(pipeline.TTSVoice)},
		{"wake word entity", optional(pipeline.WakeWordEntity)},
		{"wake word id", optional(pipeline.WakeWordID)},
	}

	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%-22s %s\n", row.label+":", row.value)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderUser(user connection.User, config connection.Config, haVersion string) string {
	var roles []string
	if user.IsOwner {
		roles = append(roles, "owner")
	}
	if user.IsAdmin {
		roles = append(roles, "admin")
	}
	if len(roles) == 0 {
		roles = append(roles, "user")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headingStyle.Render(user.Name), mutedStyle.Render("("+user.ID+")"))
	fmt.Fprintf(&b, "roles:    %s\n", strings.Join(roles, ", "))
	fmt.Fprintf(&b, "instance: %s\n", config.LocationName)
	fmt.Fprintf(&b, "version:  %s", haVersion)
	return b.String()
}

func optional(value *string) string {
	if value == nil {
		return mutedStyle.Render("-")
	}
	return *value
}
