package ui

import (
	"context"

	walletapp "github.com/fd1az/dapp-marketplace/business/wallet/app"
)

// Approver routes wallet prompts to the TUI approval modal.
type Approver struct {
	send func(msg any) bool
}

// NewApprover creates an approver bound to the running program.
func NewApprover() *Approver {
	return &Approver{send: func(msg any) bool {
		if Program == nil {
			return false
		}
		Program.Send(msg)
		return true
	}}
}

// Approve blocks until the user answers the modal or ctx is done.
func (a *Approver) Approve(ctx context.Context, req walletapp.ApprovalRequest) (bool, error) {
	reply := make(chan bool, 1)
	if !a.send(ApprovalRequestMsg{Request: req, Reply: reply}) {
		return false, nil
	}

	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
