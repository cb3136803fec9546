package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/client"
	"github.com/alfredjeanlab/relay/internal/identity"
	"github.com/alfredjeanlab/relay/internal/ui"
)

var (
	relayURL   string
	secretKey  string
	configPath string
	jsonOutput bool
	timeout    time.Duration
)

func defaultRelayURL() string {
	if s := os.Getenv("RELAY_URL"); s != "" {
		return s
	}
	return "ws://localhost:7447"
}

var rootCmd = &cobra.Command{
	Use:          "relay <command>",
	Short:        "Single-writer signed-event relay",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonOutput || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", defaultRelayURL(), "relay WebSocket URL")
	rootCmd.PersistentFlags().StringVar(&secretKey, "key", os.Getenv("RELAY_SECRET_KEY"), "hex secret key used to authenticate and sign")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("RELAY_CONFIG"), "TOML or YAML config file (server commands)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for relay requests")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Events
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(reqCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect dials the relay and, when a key is configured, authenticates.
func connect(ctx context.Context) (*client.Client, *btcec.PrivateKey, error) {
	c, err := client.Dial(ctx, relayURL, nil)
	if err != nil {
		return nil, nil, err
	}
	if secretKey == "" {
		return c, nil, nil
	}
	key, err := identity.ParseSecretKey(secretKey)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	if err := c.Auth(ctx, key); err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, key, nil
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func printJSONLine(v any) error {
	data, err := marshalJSON(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
