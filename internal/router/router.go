// Package router holds the closed agent-role → model mapping. Thinker roles
// (spatial, critic, refinement) get the heavier tier and a looser
// temperature; parser/utility roles (input, cost, furniture) get the
// faster tier and a tighter temperature.
package router

import (
	"github.com/smilemakc/floorplan/internal/config"
	"github.com/smilemakc/floorplan/pkg/models"
)

const (
	fastModel  = "gpt-4o-mini"
	heavyModel = "gpt-4o"
)

// defaultTable is the normative closed map. It is never mutated at runtime.
var defaultTable = models.ModelRouterConfig{
	models.AgentInput:      {Model: fastModel, Temperature: 0.2, MaxTokens: 1024, Tier: models.TierFast},
	models.AgentSpatial:    {Model: heavyModel, Temperature: 0.7, MaxTokens: 4096, Tier: models.TierHeavy},
	models.AgentCritic:     {Model: heavyModel, Temperature: 0.3, MaxTokens: 2048, Tier: models.TierHeavy},
	models.AgentRefinement: {Model: heavyModel, Temperature: 0.5, MaxTokens: 4096, Tier: models.TierHeavy},
	models.AgentCost:       {Model: fastModel, Temperature: 0.2, MaxTokens: 1536, Tier: models.TierFast},
	models.AgentFurniture:  {Model: fastModel, Temperature: 0.4, MaxTokens: 1536, Tier: models.TierFast},
}

// Router resolves an agent role to its model routing config.
type Router struct {
	table models.ModelRouterConfig
}

// New builds a Router from the default table, applying any non-empty
// per-role model overrides from cfg.
func New(cfg config.ModelRoutingConfig) *Router {
	table := make(models.ModelRouterConfig, len(defaultTable))
	for role, route := range defaultTable {
		table[role] = route
	}

	overrides := map[models.AgentRole]string{
		models.AgentInput:      cfg.Input,
		models.AgentSpatial:    cfg.Spatial,
		models.AgentCritic:     cfg.Critic,
		models.AgentRefinement: cfg.Refinement,
		models.AgentCost:       cfg.Cost,
		models.AgentFurniture:  cfg.Furniture,
	}
	for role, modelOverride := range overrides {
		if modelOverride == "" {
			continue
		}
		route := table[role]
		route.Model = modelOverride
		table[role] = route
	}

	return &Router{table: table}
}

// Route returns the model routing config for role. Every AgentRole constant
// has an entry in the closed table; an unknown role returns the zero value.
func (r *Router) Route(role models.AgentRole) models.ModelRouteConfig {
	return r.table[role]
}
