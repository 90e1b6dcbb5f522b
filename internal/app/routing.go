package app

import (
	"click-router/internal/cloak"
	"click-router/internal/common/logging"
	"click-router/internal/routing"
)

func (app *App) initializeRouting() {
	app.Evaluator = routing.NewRuleEvaluator()

	validator := cloak.NewValidator(cloak.Config{
		ClickIDParams:    app.Config.CloakClickIDParamList(),
		AllowedReferrers: app.Config.CloakAllowedReferrerList(),
		BypassParam:      app.Config.CloakBypassParam,
	})

	app.Orchestrator = routing.NewOrchestrator(routing.OrchestratorConfig{
		Evaluator: app.Evaluator,
		Validator: validator,
		Recorder:  app.Recorder,
		Logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "orchestrator"}),
	})
}
