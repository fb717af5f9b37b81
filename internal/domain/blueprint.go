package domain

import "fmt"

// Agent roles within a team blueprint.
const (
	RoleCoordinator = "coordinator"
	RoleContributor = "contributor"
	RoleReviewer    = "reviewer"
	RoleSpecialist  = "specialist"
)

// Coordination strategies a team can run under.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
	StrategyDebate     = "debate"
	StrategyPipeline   = "pipeline"
)

// Team size bounds enforced by Validate and by the variation operators.
const (
	MinTeamSize = 1
	MaxTeamSize = 5
)

// AgentSpec describes one agent slot inside a team blueprint.
type AgentSpec struct {
	Role         string   `json:"role"`
	Model        string   `json:"model"`
	SystemPrompt string   `json:"system_prompt"`
	Skills       []string `json:"skills,omitempty"`
	MemoryBlocks []string `json:"memory_blocks,omitempty"`
}

// FitnessScores holds the five scored components and their weighted composite.
// All values are in [0,1].
type FitnessScores struct {
	Composite      float64 `json:"composite"`
	TaskCompletion float64 `json:"task_completion"`
	ReviewScore    float64 `json:"review_score"`
	ReasoningDepth float64 `json:"reasoning_depth"`
	ConsensusSpeed float64 `json:"consensus_speed"`
	CostEfficiency float64 `json:"cost_efficiency"`
}

// HubRefs records the consensus-hub artifacts a blueprint passed through.
type HubRefs struct {
	ProblemID  string `json:"problem_id,omitempty"`
	BranchID   string `json:"branch_id,omitempty"`
	ProposalID string `json:"proposal_id,omitempty"`
}

// TeamBlueprint is the unit of evolution: an immutable, versioned team
// configuration archived one-per-niche. Instances are created every
// evolutionary iteration but only merged ones persist.
type TeamBlueprint struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Generation           int             `json:"generation"`
	ParentIDs            []string        `json:"parent_ids"`
	Agents               []AgentSpec     `json:"agents"`
	CoordinationStrategy string          `json:"coordination_strategy"`
	Niche                NicheDescriptor `json:"niche"`
	Fitness              FitnessScores   `json:"fitness"`
	HubRefs              HubRefs         `json:"hub_refs,omitempty"`
}

// Validate enforces the structural invariants every archived blueprint must hold:
// team size within bounds, at most one coordinator, and a lineage of 0 (genesis),
// 1 (mutation) or 2 (crossover) parents.
func (bp *TeamBlueprint) Validate() error {
	if n := len(bp.Agents); n < MinTeamSize || n > MaxTeamSize {
		return NewDomainError("TeamBlueprint.Validate", ErrBlueprintInvalid,
			fmt.Sprintf("team size %d outside [%d,%d]", n, MinTeamSize, MaxTeamSize))
	}
	coordinators := 0
	for _, a := range bp.Agents {
		if a.Role == RoleCoordinator {
			coordinators++
		}
	}
	if coordinators > 1 {
		return NewDomainError("TeamBlueprint.Validate", ErrBlueprintInvalid,
			fmt.Sprintf("%d coordinators, at most 1 allowed", coordinators))
	}
	if n := len(bp.ParentIDs); n > 2 {
		return NewDomainError("TeamBlueprint.Validate", ErrBlueprintInvalid,
			fmt.Sprintf("%d parents, at most 2 allowed", n))
	}
	return nil
}

// Clone returns a deep copy safe to mutate without aliasing the original.
func (bp *TeamBlueprint) Clone() *TeamBlueprint {
	out := *bp
	out.ParentIDs = append([]string(nil), bp.ParentIDs...)
	out.Agents = make([]AgentSpec, len(bp.Agents))
	for i, a := range bp.Agents {
		out.Agents[i] = a
		out.Agents[i].Skills = append([]string(nil), a.Skills...)
		out.Agents[i].MemoryBlocks = append([]string(nil), a.MemoryBlocks...)
	}
	return &out
}
