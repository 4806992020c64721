package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// ErrorsComponent keeps the most recent errors.
type ErrorsComponent struct {
	entries []ErrorEntry
	max     int
}

// NewErrorsComponent creates a panel holding up to max errors.
func NewErrorsComponent(max int) *ErrorsComponent {
	return &ErrorsComponent{entries: make([]ErrorEntry, 0, max), max: max}
}

// Add appends an error, dropping the oldest beyond capacity.
func (e *ErrorsComponent) Add(message string, at time.Time) {
	e.entries = append(e.entries, ErrorEntry{Message: message, Timestamp: at})
	if len(e.entries) > e.max {
		e.entries = e.entries[len(e.entries)-e.max:]
	}
}

// Clear removes all errors.
func (e *ErrorsComponent) Clear() {
	e.entries = e.entries[:0]
}

// Len returns the number of errors shown.
func (e *ErrorsComponent) Len() int {
	return len(e.entries)
}

// View renders the error panel, or "" when empty.
func (e *ErrorsComponent) View(now time.Time) string {
	if len(e.entries) == 0 {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	errorHeader := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	mutedError := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	var b strings.Builder
	b.WriteString(errorHeader.Render("ERRORS"))
	b.WriteString(mutedError.Render(" (e: clear)"))
	b.WriteString("\n")
	for _, entry := range e.entries {
		ago := now.Sub(entry.Timestamp).Round(time.Second)
		b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", entry.Message)))
		b.WriteString(mutedError.Render(fmt.Sprintf("(%s ago)", ago)))
		b.WriteString("\n")
	}
	return b.String()
}
