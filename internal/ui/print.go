package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Output is where the Print helpers write. Tests swap it for a buffer.
var Output io.Writer = os.Stdout

var (
	accentColor  = lipgloss.AdaptiveColor{Light: "#0C4B33", Dark: "#44B78B"}
	subtleColor  = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	successColor = lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"}
	warningColor = lipgloss.AdaptiveColor{Light: "#CC6600", Dark: "#FFAA00"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF0000"}
	infoColor    = lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#00AAFF"}

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	infoStyle    = lipgloss.NewStyle().Foreground(infoColor)
	labelStyle   = lipgloss.NewStyle().Foreground(subtleColor)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(subtleColor)
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"})
)

func emit(s string) {
	fmt.Fprintln(Output, s)
}

// PrintHeader prints a styled header
func PrintHeader(text string) {
	emit(headerStyle.Render("  " + text))
}

// PrintSuccess prints a success message with checkmark
func PrintSuccess(text string) {
	emit(successStyle.Render("✔") + " " + text)
}

// PrintWarning prints a warning message
func PrintWarning(text string) {
	emit(warningStyle.Render("⚠") + " " + text)
}

// PrintError prints an error message
func PrintError(text string) {
	emit(errorStyle.Render("✖") + " " + text)
}

// PrintInfo prints an info message
func PrintInfo(text string) {
	emit(infoStyle.Render("ℹ") + " " + text)
}

// PrintLog prints command output, dimmed and indented.
func PrintLog(text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		emit(dimStyle.Render("  " + line))
	}
}

// PrintHighlight prints highlighted text
func PrintHighlight(label, value string) {
	emit("  " + labelStyle.Render(label+":") + " " + valueStyle.Render(value))
}

// PrintDivider prints a styled divider
func PrintDivider() {
	emit(dividerStyle.Render("  " + strings.Repeat("─", 50)))
}

// formatStatus renders a pipeline status line, styling warnings and aborts.
func formatStatus(msg string) string {
	switch {
	case strings.HasPrefix(msg, "Warning: "):
		return warningStyle.Render("⚠") + " " + strings.TrimPrefix(msg, "Warning: ")
	case strings.HasPrefix(msg, "Process aborted: "):
		return errorStyle.Render("✖") + " " + msg
	case strings.HasPrefix(msg, "Done!"), strings.HasPrefix(msg, "Project '"):
		return successStyle.Render("✔") + " " + msg
	default:
		return infoStyle.Render("ℹ") + " " + msg
	}
}

// PrintStatus prints a pipeline status line.
func PrintStatus(msg string) {
	emit(formatStatus(msg))
}
