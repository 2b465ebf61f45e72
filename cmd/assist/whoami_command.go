package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant"
	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant/connection"
)

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the access token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(runCtx context.Context, client *homeassistant.Client) error {
				user, ok := client.User()
				if !ok {
					return fmt.Errorf("current user could not be resolved")
				}
				conn := client.Connection()
				if conn == nil {
					return homeassistant.ErrNotConnected
				}
				config, err := connection.GetConfig(runCtx, conn)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderUser(user, config, conn.HAVersion()))
				return nil
			})
		},
	}
}
