package app

// Controller is the single entry point for user intents. It pairs the
// session (connect, reload, network) with the transaction orchestrator.
type Controller struct {
	*Session
	*Orchestrator
}

// NewController creates a Controller.
func NewController(session *Session, orchestrator *Orchestrator) *Controller {
	return &Controller{Session: session, Orchestrator: orchestrator}
}
