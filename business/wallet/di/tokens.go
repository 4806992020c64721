// Package di contains dependency injection tokens for the wallet context.
package di

import (
	"github.com/fd1az/dapp-marketplace/business/wallet/app"
	"github.com/fd1az/dapp-marketplace/business/wallet/infra/ethereum"
	"github.com/fd1az/dapp-marketplace/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateway          = di.NewToken[app.Gateway]("wallet.Gateway")
	EndpointSwitcher = di.NewToken[app.EndpointSwitcher]("wallet.EndpointSwitcher")
	Approver         = di.NewToken[*app.SwappableApprover]("wallet.Approver")
)

// Private dependency tokens - internal to wallet module
var (
	EthGateway = di.NewToken[*ethereum.Gateway]("wallet:ethGateway")
	Signer     = di.NewToken[*ethereum.Signer]("wallet:signer")
)

func GetGateway(c di.ServiceRegistry) app.Gateway {
	return di.GetToken(c, Gateway)
}

func GetEndpointSwitcher(c di.ServiceRegistry) app.EndpointSwitcher {
	return di.GetToken(c, EndpointSwitcher)
}

func GetApprover(c di.ServiceRegistry) *app.SwappableApprover {
	return di.GetToken(c, Approver)
}

func GetEthGateway(c di.ServiceRegistry) *ethereum.Gateway {
	return di.GetToken(c, EthGateway)
}

func GetSigner(c di.ServiceRegistry) *ethereum.Signer {
	return di.GetToken(c, Signer)
}
