// Package marketplace implements the marketplace bounded context: contract
// location, product listing, the wallet session and transaction submission.
package marketplace

import (
	"context"

	"github.com/fd1az/dapp-marketplace/business/marketplace/app"
	marketDI "github.com/fd1az/dapp-marketplace/business/marketplace/di"
	"github.com/fd1az/dapp-marketplace/business/marketplace/infra/contract"
	"github.com/fd1az/dapp-marketplace/business/marketplace/infra/deployment"
	walletDI "github.com/fd1az/dapp-marketplace/business/wallet/di"
	"github.com/fd1az/dapp-marketplace/internal/config"
	"github.com/fd1az/dapp-marketplace/internal/di"
	"github.com/fd1az/dapp-marketplace/internal/httpclient"
	"github.com/fd1az/dapp-marketplace/internal/logger"
	"github.com/fd1az/dapp-marketplace/internal/monolith"
)

// Module implements the marketplace bounded context.
type Module struct{}

// RegisterServices registers all marketplace services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketDI.Loader, func(sr di.ServiceRegistry) *deployment.Loader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		hc, err := httpclient.NewInstrumentedClient(
			httpclient.WithProviderName("artifacts"),
			httpclient.WithRequestTimeout(cfg.Ethereum.RequestTimeout),
		)
		if err != nil {
			panic("failed to create artifacts http client: " + err.Error())
		}
		return deployment.NewLoader(hc, log)
	})

	di.RegisterToken(c, marketDI.Locator, func(sr di.ServiceRegistry) *app.Locator {
		cfg := sr.Get("config").(*config.Config)
		// Deployments are loaded in Startup.
		return app.NewLocator(cfg.Marketplace.ContractName)
	})

	di.RegisterToken(c, marketDI.Store, func(sr di.ServiceRegistry) *app.Store {
		return app.NewStore()
	})

	di.RegisterToken(c, marketDI.Repository, func(sr di.ServiceRegistry) app.ProductRepository {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		repo, err := contract.NewRepository(contract.RepositoryConfig{
			Concurrency:    cfg.Marketplace.ReadConcurrency,
			ReadsPerSecond: cfg.Marketplace.ReadsPerSecond,
			MaxProducts:    cfg.Marketplace.MaxProducts,
		}, walletDI.GetGateway(sr), log)
		if err != nil {
			panic("failed to create product repository: " + err.Error())
		}
		return repo
	})

	di.RegisterToken(c, marketDI.Session, func(sr di.ServiceRegistry) *app.Session {
		log := sr.Get("logger").(logger.LoggerInterface)

		session, err := app.NewSession(
			walletDI.GetGateway(sr),
			marketDI.GetLocator(sr),
			marketDI.GetRepository(sr),
			marketDI.GetStore(sr),
			log,
		)
		if err != nil {
			panic("failed to create session: " + err.Error())
		}
		return session
	})

	di.RegisterToken(c, marketDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		o, err := app.NewOrchestrator(app.OrchestratorConfig{
			PurchaseGasLimit:    cfg.Marketplace.PurchaseGasLimit,
			CreateGasLimit:      cfg.Marketplace.CreateGasLimit,
			Confirmations:       cfg.Marketplace.Confirmations,
			ConfirmationTimeout: cfg.Marketplace.ConfirmationTimeout,
		}, marketDI.GetSession(sr), log)
		if err != nil {
			panic("failed to create transaction orchestrator: " + err.Error())
		}
		return o
	})

	di.RegisterToken(c, marketDI.Controller, func(sr di.ServiceRegistry) *app.Controller {
		return app.NewController(marketDI.GetSession(sr), marketDI.GetOrchestrator(sr))
	})

	return nil
}

// Startup loads the deployment map and contract ABI into the locator.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	loader := marketDI.GetLoader(mono.Services())
	mono.OnClose(loader)

	deployments, err := loader.Deployments(ctx, cfg.Marketplace.DeploymentsSource)
	if err != nil {
		return err
	}
	contractABI, err := loader.ABI(ctx, cfg.Marketplace.ABISource)
	if err != nil {
		return err
	}

	locator := marketDI.GetLocator(mono.Services())
	locator.Load(deployments, contractABI)

	supported := locator.Supported()
	if len(supported) == 0 {
		log.Warn(ctx, "no marketplace deployments configured",
			"contract", cfg.Marketplace.ContractName,
			"source", cfg.Marketplace.DeploymentsSource,
		)
	}

	log.Info(ctx, "marketplace module started",
		"contract", cfg.Marketplace.ContractName,
		"networks", supported,
	)
	return nil
}
