package cmd

import (
	"github.com/Kingmaker16/codex-os/internal/engine"
	"github.com/Kingmaker16/codex-os/internal/enrich"
	"github.com/Kingmaker16/codex-os/internal/hooks"
	"github.com/Kingmaker16/codex-os/internal/invoke"
	"github.com/Kingmaker16/codex-os/internal/metrics"
	"github.com/Kingmaker16/codex-os/internal/route"
)

// planner builds the route planner from the configured table and overrides.
func (a *app) planner() (*route.Planner, error) {
	doc, err := route.DefaultDocument()
	if a.cfg.Routes.TableFile != "" {
		doc, err = route.LoadDocument(a.cfg.Routes.TableFile)
	}
	if err != nil {
		return nil, err
	}
	return route.NewPlanner(doc, route.Options{
		BaseURL:  a.cfg.Routes.BaseURL,
		Services: a.cfg.Routes.Services,
	})
}

// hooks builds the configured webhooks. Callers Wait on the registry before
// exiting so in-flight deliveries are not dropped.
func (a *app) hooks() (*hooks.Registry, error) {
	return hooks.FromConfig(a.cfg.Hooks, a.logger)
}

// engine wires planner, enricher, HTTP invoker and hooks into an engine. m
// may be nil.
func (a *app) engine(planner *route.Planner, m *metrics.Metrics, notifier *hooks.Registry) *engine.Engine {
	enricher := enrich.New(enrich.Options{
		Strict: a.cfg.Engine.StrictEnrichment,
		Logger: a.logger,
	})
	invoker := invoke.NewHTTPInvoker(invoke.HTTPOptions{
		Logger:  a.logger,
		Metrics: m,
	})

	opts := a.cfg.EngineOptions()
	opts.Logger = a.logger
	opts.Metrics = m
	if notifier != nil {
		opts.Hooks = notifier
	}
	return engine.New(planner, enricher, invoker, opts)
}
