package ui

import (
	"os"

	"golang.org/x/term"

	"github.com/lupon1/Django-Project-Assistant/internal/events"
)

// IsInteractive reports whether stdout is a terminal the console can own.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Drain prints bus events line by line until the bus is closed. It is the
// console's fallback when stdout is not a terminal.
func Drain(bus *events.Bus) {
	for e := range bus.C() {
		PrintEvent(e)
	}
	if n := bus.Dropped(); n > 0 {
		PrintWarning(FormatDropped(n))
	}
}

// PrintEvent prints a single bus event.
func PrintEvent(e events.Event) {
	switch e.Kind {
	case events.Status:
		PrintStatus(e.Text)
	case events.Log:
		PrintLog(e.Text)
	case events.ServerLine:
		emit(e.Text)
	case events.ServerStopped:
		if e.Err != nil {
			PrintInfo("Server stopped: " + e.Err.Error())
		} else {
			PrintInfo("Server stopped")
		}
	}
}
