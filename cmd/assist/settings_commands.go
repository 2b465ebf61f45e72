package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/timmo001/home-assistant-assist-desktop/core/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "settings",
		Short:       "Manage the settings file",
		Annotations: map[string]string{"skipSettingsLoad": "true"},
	}

	cmd.AddCommand(newSettingsInitCommand(ctx))
	cmd.AddCommand(newSettingsShowCommand(ctx))
	cmd.AddCommand(newSettingsSetCommand(ctx))
	cmd.AddCommand(newSettingsPathCommand(ctx))
	cmd.AddCommand(newSettingsSchemaCommand())

	return cmd
}

func (c *commandContext) settingsFlagPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func newSettingsInitCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settings.ResolvePath(ctx.settingsFlagPath())
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("settings file %s already exists (use --overwrite to replace it)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check settings file: %w", err)
			}

			defaults := settings.Default()
			if err := settings.Save(path, &defaults); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote settings to %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "Set home_assistant.access_token or export %s before connecting\n", settings.TokenEnv)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing settings file")
	return cmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, path, err := ctx.ensureSettings()
			if err != nil {
				return err
			}

			shown := *loaded
			if !reveal {
				shown.HomeAssistant.AccessToken = maskToken(shown.HomeAssistant.AccessToken)
			}

			var buf bytes.Buffer
			if err := toml.NewEncoder(&buf).Encode(shown); err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, buf.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the access token in full")
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a single setting, for example home_assistant.host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := settings.Update(ctx.settingsFlagPath(), func(s *settings.Settings) error {
				return s.Set(args[0], args[1])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s in %s\n", args[0], path)
			return nil
		},
	}
}

func newSettingsPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settings.ResolvePath(ctx.settingsFlagPath())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newSettingsSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := settings.Schema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(content))
			return nil
		},
	}
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
