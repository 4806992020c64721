package app

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
)

// Locator resolves the marketplace deployment for a network.
type Locator struct {
	contractName string

	mu          sync.RWMutex
	deployments domain.Deployments
	abi         *abi.ABI
}

// NewLocator creates a locator for contractName. Until Load is called
// every network is unsupported.
func NewLocator(contractName string) *Locator {
	return &Locator{contractName: contractName}
}

// Load installs the deployment map and the contract ABI.
func (l *Locator) Load(deployments domain.Deployments, contractABI *abi.ABI) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deployments = deployments
	l.abi = contractABI
}

// Resolve returns a fresh binding for networkID. A network without a
// deployment yields apperror.CodeUnsupportedNetwork.
func (l *Locator) Resolve(networkID walletdomain.NetworkID) (*domain.ContractBinding, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	addrs, ok := l.deployments.Lookup(networkID, l.contractName)
	if !ok || l.abi == nil {
		return nil, l.unsupported(networkID)
	}

	raw := strings.TrimSpace(addrs[0])
	if !common.IsHexAddress(raw) {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("invalid %s address %q for network %d", l.contractName, raw, networkID)))
	}

	return &domain.ContractBinding{
		Name:      l.contractName,
		Address:   common.HexToAddress(raw),
		ABI:       l.abi,
		NetworkID: networkID,
	}, nil
}

// Supported lists the networks with a deployment, ascending.
func (l *Locator) Supported() []walletdomain.NetworkID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.deployments.Networks(l.contractName)
}

// Unsupported builds the error surfaced when the wallet is on networkID.
func (l *Locator) Unsupported(networkID walletdomain.NetworkID) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unsupported(networkID)
}

func (l *Locator) unsupported(networkID walletdomain.NetworkID) error {
	supported := l.deployments.Networks(l.contractName)
	if len(supported) == 0 {
		return apperror.New(apperror.CodeUnsupportedNetwork,
			apperror.WithContext(fmt.Sprintf("no %s deployments are configured", l.contractName)))
	}

	names := make([]string, len(supported))
	for i, id := range supported {
		names[i] = fmt.Sprintf("%s (%d)", id.Name(), uint64(id))
	}
	return apperror.New(apperror.CodeUnsupportedNetwork,
		apperror.WithContext(fmt.Sprintf("%s, current network is %d", strings.Join(names, " or "), uint64(networkID))))
}
