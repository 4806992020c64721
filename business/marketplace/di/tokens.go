// Package di contains dependency injection tokens for the marketplace context.
package di

import (
	"github.com/fd1az/dapp-marketplace/business/marketplace/app"
	"github.com/fd1az/dapp-marketplace/business/marketplace/infra/deployment"
	"github.com/fd1az/dapp-marketplace/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Session      = di.NewToken[*app.Session]("marketplace.Session")
	Orchestrator = di.NewToken[*app.Orchestrator]("marketplace.Orchestrator")
	Controller   = di.NewToken[*app.Controller]("marketplace.Controller")
)

// Private dependency tokens - internal to marketplace module
var (
	Locator    = di.NewToken[*app.Locator]("marketplace:locator")
	Store      = di.NewToken[*app.Store]("marketplace:store")
	Repository = di.NewToken[app.ProductRepository]("marketplace:repository")
	Loader     = di.NewToken[*deployment.Loader]("marketplace:loader")
)

func GetSession(c di.ServiceRegistry) *app.Session {
	return di.GetToken(c, Session)
}

func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetController(c di.ServiceRegistry) *app.Controller {
	return di.GetToken(c, Controller)
}

func GetLocator(c di.ServiceRegistry) *app.Locator {
	return di.GetToken(c, Locator)
}

func GetStore(c di.ServiceRegistry) *app.Store {
	return di.GetToken(c, Store)
}

func GetRepository(c di.ServiceRegistry) app.ProductRepository {
	return di.GetToken(c, Repository)
}

func GetLoader(c di.ServiceRegistry) *deployment.Loader {
	return di.GetToken(c, Loader)
}
