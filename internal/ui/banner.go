package ui

import (
	"fmt"

	"github.com/fatih/color"
)

// Version is printed in the banner.
var Version = "dev"

// PrintBanner displays the startup banner.
func (c *Console) PrintBanner() {
	green := color.New(color.FgGreen, color.Bold)
	hiGreen := color.New(color.FgHiGreen)
	yellow := color.New(color.FgYellow, color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintln(c.Out)
	green.Fprintln(c.Out, "╔════════════════════════════════════════════════════════════════╗")

	art := []string{
		"  ___  _    _                                       ",
		" |   \\(_)__| |_  __ _____ _____ _____ _ _ _  _     ",
		" | |) | (_-< ' \\/ _/ _ \\ V / -_) '_| || |         ",
		" |___/|_/__/_||_\\__\\___/\\_/\\___|_|  \\_, |         ",
		"                                     |__/          ",
	}
	for _, line := range art {
		green.Fprint(c.Out, "║  ")
		hiGreen.Fprintf(c.Out, "%-60s", line)
		green.Fprintln(c.Out, "  ║")
	}

	green.Fprintln(c.Out, "╠════════════════════════════════════════════════════════════════╣")
	green.Fprint(c.Out, "║  ")
	yellow.Fprint(c.Out, "🍳 SNAP A DISH, GET THE RECIPE")
	dim.Fprintf(c.Out, "  │  %-26s", Version)
	green.Fprintln(c.Out, "║")
	green.Fprintln(c.Out, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.Out)
}

// PrintMiniBanner displays a one-line banner for CLI subcommands.
func (c *Console) PrintMiniBanner() {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)

	green.Fprint(c.Out, "Dishcovery")
	yellow.Fprint(c.Out, " 🍳 ")
	dim := color.New(color.FgHiBlack)
	dim.Fprintln(c.Out, Version)
}
