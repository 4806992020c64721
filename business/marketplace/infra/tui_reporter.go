package infra

import (
	"context"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	"github.com/fd1az/dapp-marketplace/pkg/ui"
)

// TUIReporter implements Reporter for the Bubble Tea TUI.
type TUIReporter struct {
	send func(msg any)
}

// NewTUIReporter creates a reporter that forwards state to the running
// program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: func(msg any) { ui.Send(msg) }}
}

// Start is a no-op; the program is started by main.
func (r *TUIReporter) Start(ctx context.Context) error {
	return nil
}

// Report sends the snapshot to the TUI.
func (r *TUIReporter) Report(st domain.State) {
	r.send(ui.StateMsg{State: st})
}

// Stop is a no-op; quitting the program ends the TUI.
func (r *TUIReporter) Stop() error {
	return nil
}
