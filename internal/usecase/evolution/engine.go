package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"swarmhub/internal/domain"
	"swarmhub/internal/usecase/swarm"
)

const defaultPopulationSize = 8

// FitnessEvaluator scores a candidate blueprint. Satisfied by *Evaluator.
type FitnessEvaluator interface {
	Evaluate(ctx context.Context, bp *domain.TeamBlueprint) (domain.FitnessScores, error)
}

// ProposalPayload is the body attached to a hub proposal.
type ProposalPayload struct {
	Blueprint domain.TeamBlueprint `json:"blueprint"`
	Fitness   domain.FitnessScores `json:"fitness"`
}

// Engine runs the generational search: selection, variation, evaluation,
// and elite replacement through the consensus hub. Candidates within a
// generation are processed sequentially so archive mutation stays atomic
// per iteration.
type Engine struct {
	store       *swarm.Store
	hub         domain.ConsensusHub
	provisioner domain.SwarmProvisioner
	evaluator   FitnessEvaluator

	niches []domain.NicheDescriptor
	rng    *rand.Rand
	cat    Catalog
	bus    domain.EventBus // optional
	logger *slog.Logger

	populationSize  int
	coordinatorName string
}

// NewEngine creates an Engine over the given niche space. The injected RNG
// makes runs reproducible under a fixed seed.
func NewEngine(
	store *swarm.Store,
	hub domain.ConsensusHub,
	provisioner domain.SwarmProvisioner,
	evaluator FitnessEvaluator,
	niches []domain.NicheDescriptor,
	rng *rand.Rand,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:           store,
		hub:             hub,
		provisioner:     provisioner,
		evaluator:       evaluator,
		niches:          niches,
		rng:             rng,
		cat:             DefaultCatalog(),
		logger:          logger,
		populationSize:  defaultPopulationSize,
		coordinatorName: "swarmhub-evolver",
	}
}

// SetPopulationSize bounds the candidates per generation.
func (e *Engine) SetPopulationSize(n int) {
	if n > 0 {
		e.populationSize = n
	}
}

// SetCatalog overrides the variation catalog.
func (e *Engine) SetCatalog(cat Catalog) { e.cat = cat }

// SetEventBus attaches the telemetry bus.
func (e *Engine) SetEventBus(bus domain.EventBus) { e.bus = bus }

// withSession threads the persisted continuity token into hub call contexts.
// A registry with no bound session leaves the context untouched.
func (e *Engine) withSession(ctx context.Context) context.Context {
	if _, _, sessionID := e.store.HubIdentity(); sessionID != "" {
		ctx = domain.WithHubSession(ctx, sessionID)
	}
	return ctx
}

// InitializeArchive is idempotent setup, safe to call every generation: it
// registers the coordinator identity, creates the workspace, and opens one
// review problem and channel per niche — but only fills gaps.
func (e *Engine) InitializeArchive(ctx context.Context, niches []domain.NicheDescriptor) error {
	ctx = e.withSession(ctx)
	hubAgentID, workspaceID, sessionID := e.store.HubIdentity()

	if hubAgentID == "" {
		id, err := e.hub.Register(ctx, e.coordinatorName, "coordinator")
		if err != nil {
			return domain.WrapOp("initialize archive: register", err)
		}
		hubAgentID = id
		e.store.SetHubIdentity(hubAgentID, workspaceID, sessionID)
	}
	if workspaceID == "" {
		id, err := e.hub.CreateWorkspace(ctx, "swarmhub", "evolutionary blueprint archive")
		if err != nil {
			return domain.WrapOp("initialize archive: workspace", err)
		}
		workspaceID = id
		e.store.SetHubIdentity(hubAgentID, workspaceID, sessionID)
	}

	for _, n := range niches {
		if e.store.NicheProblem(n.Key) != "" {
			continue
		}
		problemID, err := e.hub.CreateProblem(ctx, workspaceID,
			fmt.Sprintf("evolve %s", n.Key),
			fmt.Sprintf("continuous blueprint search for the %s niche", n.Key))
		if err != nil {
			return domain.WrapOp("initialize archive: problem", err)
		}
		e.store.SetNicheProblem(n.Key, problemID)

		// Review channel announcement; best-effort.
		channel := "review-" + n.Key
		if err := e.hub.PostMessage(ctx, channel, "review channel opened for "+n.Key); err != nil {
			e.logger.Warn("review channel announce failed", "channel", channel, "error", err)
		}
	}
	return nil
}

// RunGeneration executes min(populationSize, #niches) candidate iterations.
// A collaborator failure aborts only that candidate's remaining steps;
// previously merged elites are never touched and the next generation
// retries independently.
func (e *Engine) RunGeneration(ctx context.Context) error {
	if len(e.niches) == 0 {
		return domain.NewDomainError("Engine.RunGeneration", domain.ErrInvalidInput, "empty niche space")
	}
	ctx = e.withSession(ctx)
	if err := e.InitializeArchive(ctx, e.niches); err != nil {
		return err
	}

	iterations := e.populationSize
	if len(e.niches) < iterations {
		iterations = len(e.niches)
	}

	for i := 0; i < iterations; i++ {
		if err := e.runCandidate(ctx); err != nil {
			e.logger.Warn("candidate pipeline aborted", "iteration", i, "error", err)
		}
	}
	return nil
}

// runCandidate drives one candidate through select → variate → evaluate →
// submit → decide → merge-or-reject.
func (e *Engine) runCandidate(ctx context.Context) error {
	niche := e.niches[e.rng.Intn(len(e.niches))]
	parent, elite := e.SelectParent(niche)

	child := ApplyVariation(parent, e.rng, e.cat, 0)
	child.Niche = niche

	fitness, err := e.evaluator.Evaluate(ctx, child)
	if err != nil {
		return domain.WrapOp("candidate: evaluate", err)
	}
	child.Fitness = fitness

	proposalID, err := e.submit(ctx, niche, child)
	if err != nil {
		return domain.WrapOp("candidate: submit", err)
	}

	shouldMerge := elite == nil || IsEliteReplacement(child.Fitness, elite.Fitness)
	if err := e.review(ctx, proposalID, shouldMerge, child, elite); err != nil {
		return domain.WrapOp("candidate: review", err)
	}

	if !shouldMerge {
		e.logger.Info("candidate rejected",
			"niche", niche.Key,
			"blueprint_id", child.ID,
			"composite", child.Fitness.Composite,
			"elite_composite", elite.Fitness.Composite,
		)
		e.publish(domain.EventCandidateDropped, niche.Key, "", child)
		return nil
	}
	return e.merge(ctx, proposalID, niche, child)
}

// SelectParent returns the variation parent for a niche: the archived elite,
// or a synthesized genesis blueprint when the niche has none. The second
// return is the current elite (nil for genesis niches). Every niche always
// has a viable parent.
func (e *Engine) SelectParent(niche domain.NicheDescriptor) (*domain.TeamBlueprint, *domain.TeamBlueprint) {
	if elite := e.store.GetElite(niche); elite != nil {
		return elite, elite
	}
	return e.genesisBlueprint(niche), nil
}

// genesisBlueprint synthesizes a generation-0 single-coordinator blueprint
// with a generic niche-flavored prompt, empty skills and memory, and zero
// fitness.
func (e *Engine) genesisBlueprint(niche domain.NicheDescriptor) *domain.TeamBlueprint {
	return &domain.TeamBlueprint{
		ID:         domain.NewID(),
		Name:       niche.Key + "-team",
		Generation: 0,
		ParentIDs:  []string{},
		Agents: []domain.AgentSpec{{
			Role:  domain.RoleCoordinator,
			Model: e.cat.Models[0],
			SystemPrompt: fmt.Sprintf(
				"You coordinate a team handling %s conversations on %s. Answer helpfully and concisely.",
				niche.Domain, niche.Channel),
		}},
		CoordinationStrategy: domain.StrategySequential,
		Niche:                niche,
	}
}

// submit claims a lineage branch keyed by gen{generation}-{idPrefix} and
// creates the proposal carrying the blueprint and its fitness.
func (e *Engine) submit(ctx context.Context, niche domain.NicheDescriptor, child *domain.TeamBlueprint) (string, error) {
	problemID := e.store.NicheProblem(niche.Key)
	if problemID == "" {
		return "", domain.NewDomainError("Engine.submit", domain.ErrNotFound,
			"no hub problem for niche "+niche.Key)
	}

	branchID := fmt.Sprintf("gen%d-%s", child.Generation, idPrefix(child.ID))
	branch, err := e.hub.ClaimProblem(ctx, problemID, branchID)
	if err != nil {
		return "", err
	}

	proposalID, err := e.hub.CreateProposal(ctx, problemID,
		fmt.Sprintf("%s gen %d", child.Name, child.Generation),
		branch,
		ProposalPayload{Blueprint: *child, Fitness: child.Fitness})
	if err != nil {
		return "", err
	}

	child.HubRefs = domain.HubRefs{ProblemID: problemID, BranchID: branch, ProposalID: proposalID}
	return proposalID, nil
}

// review sends the verdict that records the merge decision. The review step
// does not judge independently — it reflects shouldMerge.
func (e *Engine) review(ctx context.Context, proposalID string, shouldMerge bool, child, elite *domain.TeamBlueprint) error {
	verdict := domain.VerdictApprove
	comment := fmt.Sprintf("composite %.3f", child.Fitness.Composite)
	if !shouldMerge {
		verdict = domain.VerdictRequestChanges
		comment = fmt.Sprintf("composite %.3f does not beat elite %.3f",
			child.Fitness.Composite, elite.Fitness.Composite)
	}
	return e.hub.ReviewProposal(ctx, proposalID, verdict, comment)
}

// merge commits the proposal, persists the child as the niche's elite,
// advances the generation clock, and provisions the live agent. A
// provisioning failure is logged but never rolls back the archive merge:
// archive and live binding may transiently diverge and self-heal on the
// next successful provision.
func (e *Engine) merge(ctx context.Context, proposalID string, niche domain.NicheDescriptor, child *domain.TeamBlueprint) error {
	if err := e.hub.MergeProposal(ctx, proposalID); err != nil {
		return domain.WrapOp("candidate: merge", err)
	}

	e.store.SetBlueprint(*child)
	e.store.SetGeneration(child.Generation)
	e.logger.Info("elite merged",
		"niche", niche.Key,
		"blueprint_id", child.ID,
		"generation", child.Generation,
		"composite", child.Fitness.Composite,
	)
	e.publish(domain.EventBlueprintMerged, niche.Key, "", child)

	agentID, err := e.provisioner.ProvisionNicheAgent(ctx, child)
	if err != nil {
		e.logger.Error("provisioning failed after merge, archive kept",
			"niche", niche.Key, "blueprint_id", child.ID, "error", err)
		return nil
	}
	e.store.SetAgentForNiche(agentID, child.ID, niche.Key)
	e.publish(domain.EventAgentProvisioned, niche.Key, agentID, nil)
	return nil
}

func (e *Engine) publish(t domain.EventType, nicheKey string, agentID string, bp *domain.TeamBlueprint) {
	if e.bus == nil {
		return
	}
	var payload json.RawMessage
	if bp != nil {
		payload, _ = json.Marshal(map[string]any{
			"blueprint_id": bp.ID,
			"generation":   bp.Generation,
			"composite":    bp.Fitness.Composite,
		})
	}
	e.bus.Publish(context.Background(), domain.Event{
		Type:      t,
		Timestamp: time.Now(),
		NicheKey:  nicheKey,
		AgentID:   agentID,
		Payload:   payload,
	})
}

func idPrefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
