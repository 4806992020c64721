package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// TxKind identifies the marketplace transaction being submitted.
type TxKind string

const (
	TxCreate   TxKind = "create"
	TxPurchase TxKind = "purchase"
)

// TxParams are the user inputs of a submission, before conversion.
type TxParams struct {
	Name      string // create
	ProductID uint64 // purchase
	Price     string // decimal ether
}

// PendingTransaction is the submission currently in flight. It lives only
// as long as the submission does.
type PendingTransaction struct {
	ID          uuid.UUID
	Kind        TxKind
	Params      TxParams
	Hash        common.Hash
	SubmittedAt time.Time
}

// NewPendingTransaction stamps a new submission.
func NewPendingTransaction(kind TxKind, params TxParams) *PendingTransaction {
	return &PendingTransaction{
		ID:          uuid.New(),
		Kind:        kind,
		Params:      params,
		SubmittedAt: time.Now(),
	}
}
