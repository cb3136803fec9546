package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/client"
	"github.com/alfredjeanlab/relay/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show relay health and, with --connections, the live connection roster",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		showConns, _ := cmd.Flags().GetBool("connections")
		token, _ := cmd.Flags().GetString("admin-token")

		ctx, cancel := requestContext()
		defer cancel()
		hc := client.NewHTTPClient(relayURL, token)

		health, err := hc.Health(ctx)
		if err != nil {
			return err
		}
		if !showConns {
			if jsonOutput {
				return printJSONLine(health)
			}
			fmt.Printf("%s %s (%d connections)\n", ui.RenderMuted("relay:"), ui.RenderOK(health.Status), health.Connections)
			return nil
		}

		entries, err := hc.Connections(ctx)
		if errors.Is(err, client.ErrUnauthorized) {
			return fmt.Errorf("connection roster: %w (set --admin-token or RELAY_ADMIN_TOKEN)", err)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSONLine(entries)
		}
		printConnectionsTable(entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("connections", false, "list open connections")
	statusCmd.Flags().String("admin-token", os.Getenv("RELAY_ADMIN_TOKEN"), "bearer token for the connection roster")
}
