package evolution

import (
	"math/rand"
	"strings"

	"swarmhub/internal/domain"
)

// Operator is a single-parent variation operator. Every operator returns a
// fresh blueprint with generation = parent.Generation+1 and
// ParentIDs = [parent.ID].
type Operator func(parent *domain.TeamBlueprint, rng *rand.Rand, cat Catalog) *domain.TeamBlueprint

// Operators returns the single-parent operator pool in a fixed order.
// Crossover is excluded: it takes two parents and is invoked directly.
func Operators() []Operator {
	return []Operator{
		SkillMutation,
		RoleMutation,
		StrategyMutation,
		TeamSizeMutation,
		ModelMutation,
	}
}

// child clones the parent and stamps fresh lineage.
func child(parent *domain.TeamBlueprint) *domain.TeamBlueprint {
	out := parent.Clone()
	out.ID = domain.NewID()
	out.Generation = parent.Generation + 1
	out.ParentIDs = []string{parent.ID}
	out.Fitness = domain.FitnessScores{}
	out.HubRefs = domain.HubRefs{}
	return out
}

// SkillMutation adds, removes or swaps one skill on one random agent slot.
// At a boundary (no skills to remove, or every catalog skill present) only
// the legal action is taken.
func SkillMutation(parent *domain.TeamBlueprint, rng *rand.Rand, cat Catalog) *domain.TeamBlueprint {
	out := child(parent)
	slot := &out.Agents[rng.Intn(len(out.Agents))]

	missing := make([]string, 0, len(cat.Skills))
	for _, s := range cat.Skills {
		if !contains(slot.Skills, s) {
			missing = append(missing, s)
		}
	}

	if len(missing) == 0 && len(slot.Skills) == 0 {
		return out
	}

	action := rng.Intn(3) // 0=add 1=remove 2=swap
	if len(slot.Skills) == 0 {
		action = 0
	} else if len(missing) == 0 {
		action = 1
	}

	switch action {
	case 0:
		slot.Skills = append(slot.Skills, missing[rng.Intn(len(missing))])
	case 1:
		i := rng.Intn(len(slot.Skills))
		slot.Skills = append(slot.Skills[:i], slot.Skills[i+1:]...)
	default:
		slot.Skills[rng.Intn(len(slot.Skills))] = missing[rng.Intn(len(missing))]
	}
	return out
}

// RoleMutation reassigns one random agent slot's role. If the new role is
// coordinator, any existing coordinator is demoted to contributor first so
// the single-coordinator invariant holds.
func RoleMutation(parent *domain.TeamBlueprint, rng *rand.Rand, cat Catalog) *domain.TeamBlueprint {
	out := child(parent)
	idx := rng.Intn(len(out.Agents))
	newRole := cat.Roles[rng.Intn(len(cat.Roles))]

	if newRole == domain.RoleCoordinator {
		for i := range out.Agents {
			if out.Agents[i].Role == domain.RoleCoordinator {
				out.Agents[i].Role = domain.RoleContributor
			}
		}
	}
	out.Agents[idx].Role = newRole
	return out
}

// StrategyMutation replaces the coordination strategy with a uniformly
// random different one.
func StrategyMutation(parent *domain.TeamBlueprint, rng *rand.Rand, cat Catalog) *domain.TeamBlueprint {
	out := child(parent)
	out.CoordinationStrategy = pickDifferent(rng, cat.Strategies, parent.CoordinationStrategy)
	return out
}

// TeamSizeMutation grows the team by one generic contributor or shrinks it
// by one non-coordinator agent, staying within [MinTeamSize, MaxTeamSize].
// At a boundary only the legal direction is taken.
func TeamSizeMutation(parent *domain.TeamBlueprint, rng *rand.Rand, cat Catalog) *domain.TeamBlueprint {
	out := child(parent)

	grow := rng.Intn(2) == 0
	if len(out.Agents) <= domain.MinTeamSize {
		grow = true
	} else if len(out.Agents) >= domain.MaxTeamSize {
		grow = false
	}

	if grow {
		out.Agents = append(out.Agents, domain.AgentSpec{
			Role:         domain.RoleContributor,
			Model:        cat.Models[rng.Intn(len(cat.Models))],
			SystemPrompt: "You are a contributor on a team handling " + out.Niche.Domain + " requests.",
		})
		return out
	}

	removable := make([]int, 0, len(out.Agents))
	for i, a := range out.Agents {
		if a.Role != domain.RoleCoordinator {
			removable = append(removable, i)
		}
	}
	if len(removable) == 0 {
		// Coordinator-only team at minimum-plus size cannot legally shrink.
		return out
	}
	i := removable[rng.Intn(len(removable))]
	out.Agents = append(out.Agents[:i], out.Agents[i+1:]...)
	return out
}

// ModelMutation replaces one random agent slot's model with a uniformly
// random different one from the tier list.
func ModelMutation(parent *domain.TeamBlueprint, rng *rand.Rand, cat Catalog) *domain.TeamBlueprint {
	out := child(parent)
	idx := rng.Intn(len(out.Agents))
	out.Agents[idx].Model = pickDifferent(rng, cat.Models, out.Agents[idx].Model)
	return out
}

// PromptCrossover interleaves the system prompts of both parents agent by
// agent: for each matching slot up to the shorter team, prompt sentences
// alternate between the parents (even positions prefer A, odd prefer B,
// overflow appended). Slots beyond the shorter team copy verbatim from A.
// Lineage: generation = max(A,B)+1, ParentIDs = [A.ID, B.ID].
func PromptCrossover(a, b *domain.TeamBlueprint, _ *rand.Rand) *domain.TeamBlueprint {
	out := a.Clone()
	out.ID = domain.NewID()
	out.Generation = maxInt(a.Generation, b.Generation) + 1
	out.ParentIDs = []string{a.ID, b.ID}
	out.Fitness = domain.FitnessScores{}
	out.HubRefs = domain.HubRefs{}

	shorter := minInt(len(a.Agents), len(b.Agents))
	for i := 0; i < shorter; i++ {
		out.Agents[i].SystemPrompt = interleaveSentences(
			a.Agents[i].SystemPrompt,
			b.Agents[i].SystemPrompt,
		)
	}
	return out
}

// ApplyVariation composes 1–3 independently, uniformly chosen single-parent
// operators and normalizes lineage once: regardless of how many operators
// ran, the result is one generation past the parent with a single parent ID.
func ApplyVariation(parent *domain.TeamBlueprint, rng *rand.Rand, cat Catalog, numOps int) *domain.TeamBlueprint {
	if numOps < 1 || numOps > 3 {
		numOps = 1 + rng.Intn(3)
	}

	ops := Operators()
	current := parent
	for i := 0; i < numOps; i++ {
		current = ops[rng.Intn(len(ops))](current, rng, cat)
	}

	current.Generation = parent.Generation + 1
	current.ParentIDs = []string{parent.ID}
	return current
}

// interleaveSentences splits both prompts into sentences and alternates
// them, preferring the first prompt on even positions.
func interleaveSentences(a, b string) string {
	sa := splitSentences(a)
	sb := splitSentences(b)

	var out []string
	for i := 0; i < maxInt(len(sa), len(sb)); i++ {
		if i%2 == 0 {
			if i < len(sa) {
				out = append(out, sa[i])
			} else {
				out = append(out, sb[i])
			}
		} else {
			if i < len(sb) {
				out = append(out, sb[i])
			} else {
				out = append(out, sa[i])
			}
		}
	}
	return strings.Join(out, " ")
}

// splitSentences breaks text on terminal punctuation, keeping the terminator.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// pickDifferent returns a uniformly random element of pool other than
// current. A pool without alternatives returns current.
func pickDifferent(rng *rand.Rand, pool []string, current string) string {
	alternatives := make([]string, 0, len(pool))
	for _, p := range pool {
		if p != current {
			alternatives = append(alternatives, p)
		}
	}
	if len(alternatives) == 0 {
		return current
	}
	return alternatives[rng.Intn(len(alternatives))]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
