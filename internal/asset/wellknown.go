package asset

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDRinkeby  = 4
	ChainIDGoerli   = 5
	ChainIDGanache  = 1337
	ChainIDHardhat  = 31337
	ChainIDSepolia  = 11155111
)

// ETH is mainnet ether. Amount arithmetic only needs decimals, so it also
// serves as the unit for ether on test networks.
var ETH = NewNative(ChainIDEthereum, "ETH", 18)

var networkNames = map[uint64]string{
	ChainIDEthereum: "Ethereum Mainnet",
	ChainIDRinkeby:  "Rinkeby Test Network",
	ChainIDGoerli:   "Goerli Test Network",
	ChainIDGanache:  "Ganache",
	ChainIDHardhat:  "Hardhat",
	ChainIDSepolia:  "Sepolia Test Network",
}

// NetworkName returns a display name for a chain id.
func NetworkName(chainID uint64) string {
	if name, ok := networkNames[chainID]; ok {
		return name
	}
	return "Unknown Network"
}
