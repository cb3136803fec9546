package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/identity"
	"github.com/alfredjeanlab/relay/internal/model"
)

var publishCmd = &cobra.Command{
	Use:   "publish [content]",
	Short: "Sign and publish an event (owner key required)",
	Long: `Sign and publish an event. Content is read from stdin when it is "-".

Delete your own events with --kind 5 --tag e=<id>.`,
	GroupID: "events",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetInt("kind")
		tagArgs, _ := cmd.Flags().GetStringArray("tag")
		createdAt, _ := cmd.Flags().GetInt64("created-at")

		if secretKey == "" {
			return fmt.Errorf("publishing requires --key or RELAY_SECRET_KEY")
		}

		content := ""
		if len(args) == 1 {
			content = args[0]
		}
		if content == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			content = string(data)
		}

		tags, err := parseTags(tagArgs)
		if err != nil {
			return err
		}
		if createdAt == 0 {
			createdAt = time.Now().Unix()
		}

		ctx, cancel := requestContext()
		defer cancel()
		c, key, err := connect(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		e := &model.Event{CreatedAt: createdAt, Kind: kind, Tags: tags, Content: content}
		if err := identity.Sign(e, key); err != nil {
			return err
		}

		res, err := c.Publish(ctx, e)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSONLine(res)
		}
		printResult(res)
		if !res.Accepted {
			return fmt.Errorf("event rejected")
		}
		return nil
	},
}

func init() {
	publishCmd.Flags().IntP("kind", "k", 1, "event kind")
	publishCmd.Flags().StringArrayP("tag", "t", nil, "tag as name=value[,value...] (repeatable)")
	publishCmd.Flags().Int64("created-at", 0, "unix timestamp (default now)")
}
