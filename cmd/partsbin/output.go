package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kalambet/partsbin/internal/catalog"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// printComponents writes a component table to w.
func printComponents(w io.Writer, reg *catalog.Registry, cs []catalog.Component) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PART NUMBER\tTYPE\tVALUE\tQTY\tLOCATION")
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			c.PartNumber, reg.DisplayName(c.Type), clip(reg.ValueOf(c), 48), c.Quantity, c.Location)
	}
	tw.Flush()
}

// printComponent writes all fields of c to w.
func printComponent(w io.Writer, reg *catalog.Registry, c catalog.Component) {
	row := func(label, v string) {
		if v != "" {
			fmt.Fprintf(w, "%-14s %s\n", label+":", v)
		}
	}
	row("ID", c.ID)
	row("Part number", c.PartNumber)
	row("Type", reg.DisplayName(c.Type))
	for _, name := range reg.AttributesOf(c.Type) {
		row(name, c.Attributes[name])
	}
	if raw, ok := c.Attributes.Raw(); ok {
		row("Value", raw)
	}
	row("Quantity", fmt.Sprint(c.Quantity))
	row("Location", c.Location)
	row("Purchase", c.PurchaseURL)
	row("Datasheet", c.DatasheetURL)
	row("Image", c.ImagePath)
	row("Notes", c.Notes)
	row("Updated", c.UpdatedAt.Local().Format("2006-01-02 15:04"))
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
