package evolution

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"swarmhub/internal/domain"
)

// Evaluation budgets. A turn at or past the budget scores zero on its
// component.
const (
	maxTranscriptsPerEval = 3
	turnLatencyBudget     = 10 * time.Second
	turnTokenBudget       = 2000
	depthMarkerTarget     = 5
)

// depthMarkers are the structure cues counted toward reasoningDepth.
var depthMarkers = []string{"first", "then", "next", "because", "therefore", "step", "finally"}

// TranscriptSource supplies recorded conversations for a domain.
type TranscriptSource interface {
	Transcripts(ctx context.Context, domainName string, limit int) ([]domain.RecordedConversation, error)
}

// Evaluator scores candidate blueprints by replaying recorded conversations
// for the candidate's niche domain through a live agent session.
//
// Components: taskCompletion is expected-phrase coverage of the replies,
// reasoningDepth is normalized structure-marker density, consensusSpeed is
// inverse normalized reply latency, costEfficiency is inverse normalized
// token spend. reviewScore enters as a neutral 0.5 prior here; the real hub
// verdict is folded in after review.
type Evaluator struct {
	exec    domain.AgentExecutionService
	source  TranscriptSource
	tokens  TokenCounter
	weights Weights
	logger  *slog.Logger
}

// NewEvaluator creates a replay evaluator.
func NewEvaluator(exec domain.AgentExecutionService, source TranscriptSource, tokens TokenCounter, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		exec:    exec,
		source:  source,
		tokens:  tokens,
		weights: DefaultWeights(),
		logger:  logger,
	}
}

// SetWeights overrides the default component weights.
func (e *Evaluator) SetWeights(w Weights) { e.weights = w }

// Evaluate scores bp. An empty corpus for the domain yields a logged neutral
// baseline rather than an error, so every candidate is comparable.
func (e *Evaluator) Evaluate(ctx context.Context, bp *domain.TeamBlueprint) (domain.FitnessScores, error) {
	convs, err := e.source.Transcripts(ctx, bp.Niche.Domain, maxTranscriptsPerEval)
	if err != nil {
		return domain.FitnessScores{}, domain.WrapOp("evaluate: transcripts", err)
	}
	if len(convs) == 0 {
		e.logger.Warn("no recorded transcripts, scoring neutral baseline",
			"domain", bp.Niche.Domain, "blueprint_id", bp.ID)
		return ComputeFitness(FitnessInput{
			TaskCompletion: 0.5,
			ReviewScore:    0.5,
			ReasoningDepth: 0.5,
			ConsensusSpeed: 0.5,
			CostEfficiency: 0.5,
		}, e.weights), nil
	}

	session, err := e.exec.CreateSession(ctx, bp)
	if err != nil {
		return domain.FitnessScores{}, domain.WrapOp("evaluate: create session", err)
	}
	defer func() { _ = session.Close(ctx) }()

	var sum FitnessInput
	turns := 0
	for _, conv := range convs {
		for _, turn := range conv.Turns {
			start := time.Now()
			reply, err := session.Send(ctx, turn.UserText)
			if err != nil {
				return domain.FitnessScores{}, domain.WrapOp("evaluate: send", err)
			}
			latency := time.Since(start)

			sum.TaskCompletion += phraseCoverage(reply, turn.ExpectedPhrases)
			sum.ReasoningDepth += markerDensity(reply)
			sum.ConsensusSpeed += 1 - clamp01(float64(latency)/float64(turnLatencyBudget))
			sum.CostEfficiency += 1 - clamp01(float64(e.tokens.Count(reply))/float64(turnTokenBudget))
			turns++
		}
	}
	if turns == 0 {
		return domain.FitnessScores{}, domain.NewDomainError("Evaluator.Evaluate",
			domain.ErrTranscriptMissing, "corpus has conversations but no turns")
	}

	n := float64(turns)
	return ComputeFitness(FitnessInput{
		TaskCompletion: sum.TaskCompletion / n,
		ReviewScore:    0.5, // neutral prior; replaced by the hub verdict
		ReasoningDepth: sum.ReasoningDepth / n,
		ConsensusSpeed: sum.ConsensusSpeed / n,
		CostEfficiency: sum.CostEfficiency / n,
	}, e.weights), nil
}

// phraseCoverage is the fraction of expected phrases present in the reply,
// case-insensitive. No expectations scores a neutral 0.5.
func phraseCoverage(reply string, expected []string) float64 {
	if len(expected) == 0 {
		return 0.5
	}
	lower := strings.ToLower(reply)
	hits := 0
	for _, p := range expected {
		if strings.Contains(lower, strings.ToLower(p)) {
			hits++
		}
	}
	return float64(hits) / float64(len(expected))
}

// markerDensity normalizes the count of structure markers against the target.
func markerDensity(reply string) float64 {
	lower := strings.ToLower(reply)
	count := 0
	for _, m := range depthMarkers {
		count += strings.Count(lower, m)
	}
	return clamp01(float64(count) / float64(depthMarkerTarget))
}
