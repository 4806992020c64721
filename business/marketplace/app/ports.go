// Package app contains the marketplace session, transaction orchestration
// and port definitions.
package app

import (
	"context"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
)

// ProductRepository reads products from a bound contract.
type ProductRepository interface {
	// ListAll returns every product ordered by id. Partial listings are
	// never returned.
	ListAll(ctx context.Context, binding *domain.ContractBinding) ([]domain.Product, error)

	// ContractName reads the contract's name() view. It returns "" when
	// the ABI has none.
	ContractName(ctx context.Context, binding *domain.ContractBinding) (string, error)
}

// Reporter renders session state outside the TUI.
type Reporter interface {
	Start(ctx context.Context) error
	Report(state domain.State)
	Stop() error
}
