// Package contract reads the marketplace contract through the wallet gateway.
package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
)

// MarketplaceABI is the ABI of the deployed Marketplace contract.
// Used when no artifact source is configured.
const MarketplaceABI = `[
	{"inputs":[],"stateMutability":"nonpayable","type":"constructor"},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "uint256", "name": "id", "type": "uint256"},
			{"indexed": false, "internalType": "string", "name": "name", "type": "string"},
			{"indexed": false, "internalType": "uint256", "name": "price", "type": "uint256"},
			{"indexed": false, "internalType": "address payable", "name": "owner", "type": "address"},
			{"indexed": false, "internalType": "bool", "name": "purchased", "type": "bool"}
		],
		"name": "ProductCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "uint256", "name": "id", "type": "uint256"},
			{"indexed": false, "internalType": "string", "name": "name", "type": "string"},
			{"indexed": false, "internalType": "uint256", "name": "price", "type": "uint256"},
			{"indexed": false, "internalType": "address payable", "name": "owner", "type": "address"},
			{"indexed": false, "internalType": "bool", "name": "purchased", "type": "bool"}
		],
		"name": "ProductPurchased",
		"type": "event"
	},
	{
		"inputs": [
			{"internalType": "string", "name": "_name", "type": "string"},
			{"internalType": "uint256", "name": "_price", "type": "uint256"}
		],
		"name": "createProduct",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "name",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "productCount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"name": "products",
		"outputs": [
			{"internalType": "uint256", "name": "id", "type": "uint256"},
			{"internalType": "string", "name": "name", "type": "string"},
			{"internalType": "uint256", "name": "price", "type": "uint256"},
			{"internalType": "address payable", "name": "owner", "type": "address"},
			{"internalType": "bool", "name": "purchased", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "_id", "type": "uint256"}],
		"name": "purchaseProduct",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

var requiredMethods = []string{
	domain.MethodProductCount,
	domain.MethodProducts,
	domain.MethodCreateProduct,
	domain.MethodPurchaseProduct,
}

// ParseMarketplaceABI parses the embedded ABI.
func ParseMarketplaceABI() (*abi.ABI, error) {
	return ParseABI(MarketplaceABI)
}

// ParseABI parses raw and checks it exposes the marketplace methods.
func ParseABI(raw string) (*abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	for _, m := range requiredMethods {
		if _, ok := parsed.Methods[m]; !ok {
			return nil, fmt.Errorf("abi is missing method %q", m)
		}
	}
	return &parsed, nil
}
