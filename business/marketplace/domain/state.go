package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
)

// Connection is the wallet connection as seen by the session.
type Connection struct {
	Status  walletdomain.ConnectionState
	Account common.Address // zero unless Status is connected
}

// State is the snapshot rendered by the presentation layer. Only the
// session and the transaction orchestrator mutate it.
type State struct {
	Connection   Connection
	NetworkID    *walletdomain.NetworkID
	Endpoint     string
	Binding      *ContractBinding
	ContractName string
	Products     []Product
	Loading      bool
	Pending      *PendingTransaction
	LastError    error
	LastEvent    *ProductEvent
	UpdatedAt    time.Time
}

// InitialState is the disconnected state.
func InitialState() State {
	return State{
		Connection: Connection{Status: walletdomain.StateDisconnected},
		Products:   []Product{},
	}
}

// Connected reports whether a wallet account is connected.
func (s State) Connected() bool {
	return s.Connection.Status == walletdomain.StateConnected
}

// Clone returns a deep copy. Bindings and errors are immutable once
// created and are shared.
func (s State) Clone() State {
	out := s
	if s.NetworkID != nil {
		id := *s.NetworkID
		out.NetworkID = &id
	}
	out.Products = make([]Product, len(s.Products))
	for i, p := range s.Products {
		out.Products[i] = p.Clone()
	}
	if s.Pending != nil {
		pending := *s.Pending
		out.Pending = &pending
	}
	if s.LastEvent != nil {
		ev := *s.LastEvent
		ev.Product = ev.Product.Clone()
		out.LastEvent = &ev
	}
	return out
}

// Product returns the product with id, if listed.
func (s State) Product(id uint64) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
