package main

import (
	"bytes"
	"io"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/ui"
)

// helpRule styles one capture group of every match of pattern and keeps the
// surrounding groups as they are.
type helpRule struct {
	pattern *regexp.Regexp
	group   int
	render  func(string) string
}

var helpRules = []helpRule{
	// Section headers: "Relay:", "Flags:", "Global Flags:".
	{regexp.MustCompile(`(?m)^()([A-Z][^\n]*:)()[ \t]*$`), 2, ui.RenderAccent},
	// Subcommand names in the two-space indented listing.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), 2, ui.RenderCommand},
	// Flag value types such as "--url string".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|int64|duration|strings|stringArray|ints)()`), 2, ui.RenderMuted},
	// Defaults such as (default "ws://localhost:7447").
	{regexp.MustCompile(`()(\(default "[^"]*"\))()`), 2, ui.RenderMuted},
}

// colorizedHelpFunc renders cobra's usage text and styles it when the help
// destination is a color-capable terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.UseColorFor(out) {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		_, _ = io.WriteString(out, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput applies helpRules in order. With color disabled the
// render functions are identity and the text is unchanged.
func colorizeHelpOutput(s string) string {
	for _, r := range helpRules {
		s = r.pattern.ReplaceAllStringFunc(s, func(match string) string {
			parts := r.pattern.FindStringSubmatch(match)
			if len(parts) != 4 {
				return match
			}
			parts[r.group] = r.render(parts[r.group])
			return parts[1] + parts[2] + parts[3]
		})
	}
	return s
}
