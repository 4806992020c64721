package domain

import (
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
)

// Marketplace contract methods the client depends on.
const (
	MethodProductCount    = "productCount"
	MethodProducts        = "products"
	MethodCreateProduct   = "createProduct"
	MethodPurchaseProduct = "purchaseProduct"
	MethodName            = "name"
)

// ContractBinding ties a contract address and ABI to the network it was
// resolved for. A binding is never reused across networks.
type ContractBinding struct {
	Name      string
	Address   common.Address
	ABI       *abi.ABI
	NetworkID walletdomain.NetworkID
}

// Same reports whether b and other point at the same deployment.
func (b *ContractBinding) Same(other *ContractBinding) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Address == other.Address && b.NetworkID == other.NetworkID
}

// Deployments is the deployment map: chain id -> contract name -> addresses.
// The first address of a list is the active deployment.
type Deployments map[string]map[string][]string

// Lookup returns the addresses registered for name on network.
func (d Deployments) Lookup(network walletdomain.NetworkID, name string) ([]string, bool) {
	contracts, ok := d[network.String()]
	if !ok {
		return nil, false
	}
	addrs, ok := contracts[name]
	return addrs, ok && len(addrs) > 0
}

// Networks returns the chain ids that have a deployment of name, ascending.
func (d Deployments) Networks(name string) []walletdomain.NetworkID {
	var ids []walletdomain.NetworkID
	for key, contracts := range d {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}
		if len(contracts[name]) > 0 {
			ids = append(ids, walletdomain.NetworkID(id))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
