package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	readers "github.com/flywave/go-3dreaders"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

var readersCmd = &cobra.Command{
	Use:   "readers",
	Short: "List the registered readers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, factory, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		printReaders(cmd.OutOrStdout(), factory.Readers())
		return nil
	},
}

func printReaders(w io.Writer, list []readers.Reader) {
	rows := [][4]string{{"NAME", "DESCRIPTION", "EXTENSIONS", "CAPABILITIES"}}
	for _, r := range list {
		rows = append(rows, [4]string{
			r.Name(),
			r.ShortDescription(),
			strings.Join(r.Extensions(), " "),
			capabilities(r),
		})
	}

	var widths [4]int
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	for n, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			b.WriteString(lipgloss.NewStyle().Width(widths[i] + 2).Render(cell))
		}
		line := b.String()
		if n == 0 {
			line = headerStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

func capabilities(r readers.Reader) string {
	var caps []string
	if _, ok := r.(readers.SceneReaderFactory); ok {
		caps = append(caps, "scene")
	}
	if _, ok := r.(readers.GeometryReaderFactory); ok {
		caps = append(caps, "geometry")
	}
	if len(caps) == 0 {
		return dimStyle.Render("none")
	}
	return strings.Join(caps, ",")
}
