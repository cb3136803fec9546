package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/relay/internal/client"
	"github.com/alfredjeanlab/relay/internal/model"
	"github.com/alfredjeanlab/relay/internal/presence"
	"github.com/alfredjeanlab/relay/internal/ui"
)

// marshalJSON encodes v without HTML escaping so event content prints as sent.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func printEventsTable(events []*model.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCREATED\tAUTHOR\tCONTENT")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			shortHex(e.ID),
			e.Kind,
			time.Unix(e.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05"),
			shortHex(e.PubKey),
			truncate(e.Content, 50),
		)
	}
	w.Flush()
	fmt.Println(ui.RenderMuted(fmt.Sprintf("\n%d events", len(events))))
}

func printResult(res *client.Result) {
	line := fmt.Sprintf("%s %s", ui.RenderVerdict(res.Accepted), res.EventID)
	if res.Message != "" {
		line += " " + ui.RenderMuted(res.Message)
	}
	fmt.Println(line)
}

func printConnectionsTable(entries []presence.Entry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREMOTE\tIDENTITY\tOWNER\tMESSAGES\tLAST\tIDLE")
	for _, e := range entries {
		owner := ""
		if e.Privileged {
			owner = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			shortHex(e.ID),
			e.RemoteAddr,
			shortHex(e.PubKey),
			owner,
			e.MessageCount,
			e.LastMessage,
			(time.Duration(e.IdleSecs) * time.Second).String(),
		)
	}
	w.Flush()
}

func shortHex(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12]
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
