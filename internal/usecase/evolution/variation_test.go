package evolution

import (
	"math/rand"
	"strings"
	"testing"

	"swarmhub/internal/domain"
)

func testParent() *domain.TeamBlueprint {
	return &domain.TeamBlueprint{
		ID:         "parent-1",
		Name:       "discord-coding-team",
		Generation: 3,
		ParentIDs:  []string{"grand-1"},
		Agents: []domain.AgentSpec{
			{Role: domain.RoleCoordinator, Model: "anthropic/claude-sonnet", SystemPrompt: "Coordinate the team. Stay focused.", Skills: []string{"web_search"}},
			{Role: domain.RoleContributor, Model: "openai/gpt-4o-mini", SystemPrompt: "Write the code. Keep it simple."},
		},
		CoordinationStrategy: domain.StrategySequential,
		Niche:                domain.NewNiche("discord", "coding"),
	}
}

func TestSingleParentOperatorsLineage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cat := DefaultCatalog()
	parent := testParent()

	for i, op := range Operators() {
		out := op(parent, rng, cat)
		if out.Generation != parent.Generation+1 {
			t.Errorf("op %d: generation = %d, want %d", i, out.Generation, parent.Generation+1)
		}
		if len(out.ParentIDs) != 1 || out.ParentIDs[0] != parent.ID {
			t.Errorf("op %d: parentIDs = %v", i, out.ParentIDs)
		}
		if out.ID == parent.ID {
			t.Errorf("op %d: child kept parent ID", i)
		}
		if err := out.Validate(); err != nil {
			t.Errorf("op %d: invalid child: %v", i, err)
		}
	}
}

func TestOperatorsDoNotMutateParent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	cat := DefaultCatalog()

	for i, op := range Operators() {
		parent := testParent()
		before := len(parent.Agents)
		skillsBefore := len(parent.Agents[0].Skills)
		op(parent, rng, cat)
		if len(parent.Agents) != before || len(parent.Agents[0].Skills) != skillsBefore {
			t.Errorf("op %d mutated the parent", i)
		}
		if parent.Generation != 3 {
			t.Errorf("op %d changed parent generation", i)
		}
	}
}

func TestStrategyMutationAlwaysDifferent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cat := DefaultCatalog()
	parent := testParent()

	for i := 0; i < 100; i++ {
		out := StrategyMutation(parent, rng, cat)
		if out.CoordinationStrategy == parent.CoordinationStrategy {
			t.Fatalf("iteration %d: strategy unchanged", i)
		}
	}
}

func TestModelMutationAlwaysDifferent(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	cat := DefaultCatalog()
	parent := testParent()

	for i := 0; i < 100; i++ {
		out := ModelMutation(parent, rng, cat)
		changed := false
		for j := range out.Agents {
			if out.Agents[j].Model != parent.Agents[j].Model {
				changed = true
			}
		}
		if !changed {
			t.Fatalf("iteration %d: no model changed", i)
		}
	}
}

func TestTeamSizeMutationRespectsBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	cat := DefaultCatalog()

	// Random walk from both boundaries: size must stay in [1,5].
	for _, start := range []int{domain.MinTeamSize, domain.MaxTeamSize} {
		bp := testParent()
		bp.Agents = bp.Agents[:1]
		for len(bp.Agents) < start {
			bp.Agents = append(bp.Agents, domain.AgentSpec{Role: domain.RoleContributor, Model: "openai/gpt-4o"})
		}
		for i := 0; i < 200; i++ {
			bp = TeamSizeMutation(bp, rng, cat)
			if n := len(bp.Agents); n < domain.MinTeamSize || n > domain.MaxTeamSize {
				t.Fatalf("start %d iteration %d: team size %d out of bounds", start, i, n)
			}
		}
	}
}

func TestTeamSizeMutationAtMinOnlyGrows(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	cat := DefaultCatalog()
	bp := testParent()
	bp.Agents = bp.Agents[:1]

	for i := 0; i < 50; i++ {
		out := TeamSizeMutation(bp, rng, cat)
		if len(out.Agents) != 2 {
			t.Fatalf("iteration %d: size %d, want 2", i, len(out.Agents))
		}
	}
}

func TestRoleMutationSingleCoordinator(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cat := DefaultCatalog()
	parent := testParent()

	for i := 0; i < 200; i++ {
		out := RoleMutation(parent, rng, cat)
		coordinators := 0
		for _, a := range out.Agents {
			if a.Role == domain.RoleCoordinator {
				coordinators++
			}
		}
		if coordinators > 1 {
			t.Fatalf("iteration %d: %d coordinators", i, coordinators)
		}
	}
}

func TestSkillMutationChangesExactlyOneSlot(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	cat := DefaultCatalog()
	parent := testParent()

	for i := 0; i < 100; i++ {
		out := SkillMutation(parent, rng, cat)
		changed := 0
		for j := range out.Agents {
			if strings.Join(out.Agents[j].Skills, ",") != strings.Join(parent.Agents[j].Skills, ",") {
				changed++
			}
		}
		if changed != 1 {
			t.Fatalf("iteration %d: %d slots changed, want 1", i, changed)
		}
	}
}

func TestPromptCrossoverLineage(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	a := testParent()
	b := testParent()
	b.ID = "parent-2"
	b.Generation = 5
	b.Agents[0].SystemPrompt = "Lead with questions. Summarize often."

	out := PromptCrossover(a, b, rng)
	if out.Generation != 6 {
		t.Errorf("generation = %d, want max(3,5)+1 = 6", out.Generation)
	}
	if len(out.ParentIDs) != 2 || out.ParentIDs[0] != "parent-1" || out.ParentIDs[1] != "parent-2" {
		t.Errorf("parentIDs = %v", out.ParentIDs)
	}
}

func TestPromptCrossoverInterleaves(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	a := testParent()
	a.Agents[0].SystemPrompt = "Alpha one. Alpha two."
	b := testParent()
	b.ID = "parent-2"
	b.Agents[0].SystemPrompt = "Beta one. Beta two. Beta three."

	out := PromptCrossover(a, b, rng)
	got := out.Agents[0].SystemPrompt
	// Even positions prefer A, odd prefer B, overflow appended.
	want := "Alpha one. Beta two. Beta three."
	if got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
}

func TestPromptCrossoverExtraSlotsCopyFromA(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a := testParent() // two agents
	b := testParent()
	b.ID = "parent-2"
	b.Agents = b.Agents[:1] // one agent

	out := PromptCrossover(a, b, rng)
	if len(out.Agents) != 2 {
		t.Fatalf("team size = %d, want 2", len(out.Agents))
	}
	if out.Agents[1].SystemPrompt != a.Agents[1].SystemPrompt {
		t.Errorf("slot beyond shorter team not copied from A")
	}
}

func TestApplyVariationNormalizesLineage(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	cat := DefaultCatalog()
	parent := testParent()

	for i := 0; i < 100; i++ {
		out := ApplyVariation(parent, rng, cat, 0)
		if out.Generation != parent.Generation+1 {
			t.Fatalf("iteration %d: generation %d, want %d (regardless of op count)",
				i, out.Generation, parent.Generation+1)
		}
		if len(out.ParentIDs) != 1 || out.ParentIDs[0] != parent.ID {
			t.Fatalf("iteration %d: parentIDs %v", i, out.ParentIDs)
		}
		if out.ID == parent.ID {
			t.Fatalf("iteration %d: ID unchanged", i)
		}
	}
}

func TestApplyVariationReproducible(t *testing.T) {
	cat := DefaultCatalog()
	parent := testParent()

	a := ApplyVariation(parent, rand.New(rand.NewSource(42)), cat, 2)
	b := ApplyVariation(parent, rand.New(rand.NewSource(42)), cat, 2)

	if a.CoordinationStrategy != b.CoordinationStrategy {
		t.Errorf("strategies differ under identical seeds: %q vs %q",
			a.CoordinationStrategy, b.CoordinationStrategy)
	}
	if len(a.Agents) != len(b.Agents) {
		t.Errorf("team sizes differ under identical seeds: %d vs %d",
			len(a.Agents), len(b.Agents))
	}
}
