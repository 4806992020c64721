package app

import (
	"context"
	"sync"
)

// SwappableApprover forwards to a replaceable Approver. The gateway is
// built before the presentation layer that answers prompts exists.
type SwappableApprover struct {
	mu       sync.RWMutex
	delegate Approver
}

// NewSwappableApprover starts out forwarding to initial.
func NewSwappableApprover(initial Approver) *SwappableApprover {
	return &SwappableApprover{delegate: initial}
}

// Set replaces the delegate.
func (s *SwappableApprover) Set(a Approver) {
	s.mu.Lock()
	s.delegate = a
	s.mu.Unlock()
}

func (s *SwappableApprover) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	s.mu.RLock()
	d := s.delegate
	s.mu.RUnlock()
	if d == nil {
		return false, nil
	}
	return d.Approve(ctx, req)
}
