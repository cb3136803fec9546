package ui

import (
	"strconv"
	"sync/atomic"
)

// Color is an ANSI 256-color index.
type Color uint8

// Palette for relay output.
const (
	Accent  Color = 74  // headers, topics
	Command Color = 250 // subcommand names
	Muted   Color = 245 // ids, types, defaults
	OK      Color = 114 // accepted, healthy
	Fail    Color = 203 // rejected
)

var noColor atomic.Bool

// Render wraps s in c's escape sequence unless color is disabled.
func (c Color) Render(s string) string {
	if noColor.Load() || s == "" {
		return s
	}
	return "\x1b[38;5;" + strconv.Itoa(int(c)) + "m" + s + "\x1b[0m"
}

func RenderAccent(s string) string  { return Accent.Render(s) }
func RenderMuted(s string) string   { return Muted.Render(s) }
func RenderCommand(s string) string { return Command.Render(s) }
func RenderOK(s string) string      { return OK.Render(s) }
func RenderFail(s string) string    { return Fail.Render(s) }

// RenderVerdict renders the outcome of an OK frame.
func RenderVerdict(accepted bool) string {
	if accepted {
		return RenderOK("ok")
	}
	return RenderFail("rejected")
}

// ForceNoColor disables color for the rest of the process.
func ForceNoColor() {
	noColor.Store(true)
}
