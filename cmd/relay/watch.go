package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/events"
	"github.com/alfredjeanlab/relay/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream relay activity from the NATS event bus",
	Long: `Stream relay activity from the NATS event bus: accepted events,
deletions and authentications. Requires --nats or RELAY_NATS_URL.`,
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		topic, _ := cmd.Flags().GetString("topic")
		if natsURL == "" {
			return fmt.Errorf("watch requires --nats or RELAY_NATS_URL")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return watchNATS(ctx, natsURL, topic)
	},
}

func init() {
	watchCmd.Flags().String("nats", os.Getenv("RELAY_NATS_URL"), "NATS server URL")
	watchCmd.Flags().String("topic", events.TopicAll, "subject to subscribe to")
}

func watchNATS(ctx context.Context, natsURL, topic string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				if err := printJSONLine(map[string]any{"topic": msg.Topic, "payload": json.RawMessage(msg.Data)}); err != nil {
					return err
				}
				continue
			}
			fmt.Println(describeBusEvent(msg))
		}
	}
}

// describeBusEvent renders one bus message as a single line.
func describeBusEvent(msg events.Message) string {
	undecodable := func() string {
		return ui.RenderFail("undecodable "+msg.Topic+": ") + string(msg.Data)
	}
	switch msg.Topic {
	case events.TopicEventAccepted:
		var p events.EventAccepted
		if json.Unmarshal(msg.Data, &p) != nil || p.Event == nil {
			return undecodable()
		}
		return fmt.Sprintf("%s %s kind=%d by %s %s", ui.RenderOK("accepted"),
			shortHex(p.Event.ID), p.Event.Kind, shortHex(p.Event.PubKey), truncate(p.Event.Content, 40))
	case events.TopicEventDeleted:
		var p events.EventDeleted
		if json.Unmarshal(msg.Data, &p) != nil {
			return undecodable()
		}
		return fmt.Sprintf("%s %s by %s", ui.RenderFail("deleted"), shortHex(p.EventID), shortHex(p.Author))
	case events.TopicSessionAuthenticated:
		var p events.SessionAuthenticated
		if json.Unmarshal(msg.Data, &p) != nil {
			return undecodable()
		}
		owner := ""
		if p.Privileged {
			owner = " (owner)"
		}
		return fmt.Sprintf("%s %s as %s%s", ui.RenderAccent("auth"), shortHex(p.ConnID), shortHex(p.PubKey), owner)
	}
	return msg.Topic + " " + string(msg.Data)
}
