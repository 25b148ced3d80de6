package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/kalambet/flowcraft/internal/marketing"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiDim    = "\033[2m"
	ansiBold   = "\033[1m"
)

func colorize(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

// notice writes a prefixed, colored line to stderr so stdout stays parseable.
func notice(code, prefix, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(code, prefix+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { notice(ansiGreen, "✓", format, args...) }
func printError(format string, args ...any)   { notice(ansiRed, "✗", format, args...) }
func printWarning(format string, args ...any) { notice(ansiYellow, "!", format, args...) }
func printStep(format string, args ...any)    { notice(ansiCyan, ">", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}

// statusLabel pads a flow status to a fixed width and colors it by state.
// Padding happens first so escape codes don't break column alignment.
func statusLabel(s marketing.Status) string {
	text := fmt.Sprintf("%-6s", s)
	switch s {
	case marketing.StatusActive:
		return colorize(ansiGreen, text)
	case marketing.StatusPaused:
		return colorize(ansiYellow, text)
	default:
		return colorize(ansiDim, text)
	}
}

// table writes tab-separated rows aligned into columns. Call Flush when done.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer) *table {
	return &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (t *table) row(cells ...string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(t.tw, "\t")
		}
		fmt.Fprint(t.tw, c)
	}
	fmt.Fprintln(t.tw)
}

func (t *table) Flush() error { return t.tw.Flush() }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
