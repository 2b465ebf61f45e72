package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var timeoutFlag time.Duration

	ctx := newCommandContext(&configFlag, &timeoutFlag)

	rootCmd := &cobra.Command{
		Use:           "assist",
		Short:         "Home Assistant Assist client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipSettings(cmd) {
				return nil
			}
			_, _, err := ctx.ensureSettings()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Settings file path")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Timeout for talking to Home Assistant")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newPipelinesCommand(ctx))
	rootCmd.AddCommand(newWhoamiCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))

	return rootCmd
}
