// Package evolution runs the generational quality-diversity search over
// team blueprints.
package evolution

import "swarmhub/internal/domain"

// Catalog holds the value pools the variation operators draw from. Operators
// take it as a parameter rather than reading package state so evolutionary
// runs are reproducible under a seeded RNG.
type Catalog struct {
	Models     []string
	Roles      []string
	Strategies []string
	Skills     []string
}

// DefaultCatalog returns the standard model tiers, roles, strategies and
// skill flags.
func DefaultCatalog() Catalog {
	return Catalog{
		Models: []string{
			"anthropic/claude-haiku",
			"anthropic/claude-sonnet",
			"anthropic/claude-opus",
			"openai/gpt-4o-mini",
			"openai/gpt-4o",
		},
		Roles: []string{
			domain.RoleCoordinator,
			domain.RoleContributor,
			domain.RoleReviewer,
			domain.RoleSpecialist,
		},
		Strategies: []string{
			domain.StrategySequential,
			domain.StrategyParallel,
			domain.StrategyDebate,
			domain.StrategyPipeline,
		},
		Skills: []string{
			"web_search",
			"code_exec",
			"file_io",
			"long_memory",
			"math",
			"summarize",
		},
	}
}
