// Package wallet implements the wallet bounded context: account access,
// network observation and transaction submission over JSON-RPC.
package wallet

import (
	"context"
	"math/big"

	"github.com/fd1az/dapp-marketplace/business/wallet/app"
	walletDI "github.com/fd1az/dapp-marketplace/business/wallet/di"
	"github.com/fd1az/dapp-marketplace/business/wallet/infra/ethereum"
	"github.com/fd1az/dapp-marketplace/internal/config"
	"github.com/fd1az/dapp-marketplace/internal/di"
	"github.com/fd1az/dapp-marketplace/internal/httpclient"
	"github.com/fd1az/dapp-marketplace/internal/logger"
	"github.com/fd1az/dapp-marketplace/internal/monolith"
)

// Module implements the wallet bounded context.
type Module struct{}

// RegisterServices registers all wallet services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, walletDI.Signer, func(sr di.ServiceRegistry) *ethereum.Signer {
		cfg := sr.Get("config").(*config.Config)

		switch {
		case cfg.Wallet.PrivateKey != "":
			s, err := ethereum.NewSignerFromHex(cfg.Wallet.PrivateKey)
			if err != nil {
				panic("failed to load wallet key: " + err.Error())
			}
			return s
		case cfg.Wallet.KeystorePath != "":
			s, err := ethereum.NewSignerFromKeystore(cfg.Wallet.KeystorePath, cfg.Wallet.KeystorePassphrase)
			if err != nil {
				panic("failed to load wallet keystore: " + err.Error())
			}
			return s
		default:
			return nil
		}
	})

	di.RegisterToken(c, walletDI.Approver, func(sr di.ServiceRegistry) *app.SwappableApprover {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Wallet.AutoApprove {
			return app.NewSwappableApprover(app.AutoApprover)
		}
		// Declines until the presentation layer installs a prompt.
		return app.NewSwappableApprover(nil)
	})

	di.RegisterToken(c, walletDI.EthGateway, func(sr di.ServiceRegistry) *ethereum.Gateway {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		hc, err := httpclient.NewInstrumentedClient(
			httpclient.WithProviderName("eth-rpc"),
			httpclient.WithRequestTimeout(cfg.Ethereum.RequestTimeout),
		)
		if err != nil {
			panic("failed to create rpc http client: " + err.Error())
		}

		oracleCfg := ethereum.DefaultGasOracleConfig()
		oracleCfg.CacheTTL = cfg.Ethereum.GasPriceCacheTTL
		if cfg.Ethereum.MaxGasPriceGwei > 0 {
			oracleCfg.MaxGasPrice = new(big.Int).Mul(big.NewInt(cfg.Ethereum.MaxGasPriceGwei), big.NewInt(1e9))
		}

		gw, err := ethereum.NewGateway(
			ethereum.GatewayConfigFrom(cfg.Ethereum),
			log,
			ethereum.HTTPDialer(hc.StdClient()),
			walletDI.GetSigner(sr),
			walletDI.GetApprover(sr),
			oracleCfg,
		)
		if err != nil {
			panic("failed to create wallet gateway: " + err.Error())
		}
		return gw
	})

	di.RegisterToken(c, walletDI.Gateway, func(sr di.ServiceRegistry) app.Gateway {
		return walletDI.GetEthGateway(sr)
	})

	di.RegisterToken(c, walletDI.EndpointSwitcher, func(sr di.ServiceRegistry) app.EndpointSwitcher {
		return walletDI.GetEthGateway(sr)
	})

	return nil
}

// Startup dials the default endpoint.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	gw := walletDI.GetEthGateway(mono.Services())
	if err := gw.Dial(ctx); err != nil {
		return err
	}
	mono.OnClose(gw)

	if walletDI.GetSigner(mono.Services()) == nil {
		log.Warn(ctx, "no wallet key configured; connect will fail")
	}

	log.Info(ctx, "wallet module started", "endpoint", gw.ActiveEndpoint())
	return nil
}
