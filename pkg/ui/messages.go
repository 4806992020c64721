package ui

import (
	"github.com/fd1az/dapp-marketplace/business/marketplace/app"
	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	walletapp "github.com/fd1az/dapp-marketplace/business/wallet/app"
)

// Message types for TUI updates

// StateMsg carries a new session snapshot.
type StateMsg struct {
	State domain.State
}

// ReadyMsg is sent once modules have started and intents can be dispatched.
type ReadyMsg struct {
	Dispatcher Dispatcher
}

// ApprovalRequestMsg asks the user to approve a wallet prompt. Exactly one
// value is sent on Reply.
type ApprovalRequestMsg struct {
	Request walletapp.ApprovalRequest
	Reply   chan<- bool
}

// ResultMsg reports the outcome of a dispatched intent.
type ResultMsg struct {
	Action  string
	Outcome *app.Outcome
	Detail  string
	Err     error
}

// ErrorMsg is sent when an error occurs outside the session.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // "config", "wallet", "marketplace"
	Status  string // "connecting", "done", "failed"
	Message string
}
