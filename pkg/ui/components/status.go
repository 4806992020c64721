// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status is the connection summary shown above the product table.
type Status struct {
	Connection string // "disconnected", "connecting", "connected"
	Account    string
	Network    string
	Endpoint   string
	Contract   string
	Pending    string
	Loading    bool
}

// StatusComponent renders the status bar.
type StatusComponent struct {
	status Status
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{status: Status{Connection: "disconnected"}}
}

// Update replaces the displayed status.
func (s *StatusComponent) Update(status Status) {
	s.status = status
}

// View renders the status bar. spinner is shown while loading.
func (s *StatusComponent) View(spinner string) string {
	connected := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	connecting := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	disconnected := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var parts []string

	switch s.status.Connection {
	case "connected":
		parts = append(parts, connected.Render("● "+ShortAddress(s.status.Account)))
	case "connecting":
		parts = append(parts, connecting.Render("◐ connecting"))
	default:
		parts = append(parts, disconnected.Render("○ disconnected"))
	}

	if s.status.Network != "" {
		parts = append(parts, "Network: "+s.status.Network)
	}
	if s.status.Endpoint != "" {
		parts = append(parts, muted.Render("via "+s.status.Endpoint))
	}
	if s.status.Contract != "" {
		parts = append(parts, "Contract: "+s.status.Contract)
	}
	if s.status.Pending != "" {
		parts = append(parts, connecting.Render(s.status.Pending))
	}
	if s.status.Loading {
		parts = append(parts, connecting.Render(fmt.Sprintf("%s loading", spinner)))
	}

	return strings.Join(parts, "  │  ")
}

// ShortAddress renders 0xf39F…2266.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
