package evolution

import "swarmhub/internal/domain"

// Weights assigns the relative importance of each fitness component.
type Weights struct {
	TaskCompletion float64
	ReviewScore    float64
	ReasoningDepth float64
	ConsensusSpeed float64
	CostEfficiency float64
}

// DefaultWeights sum to 1.0.
func DefaultWeights() Weights {
	return Weights{
		TaskCompletion: 0.35,
		ReviewScore:    0.25,
		ReasoningDepth: 0.15,
		ConsensusSpeed: 0.10,
		CostEfficiency: 0.15,
	}
}

// FitnessInput carries the five raw components. Values outside [0,1] are
// clamped before weighting.
type FitnessInput struct {
	TaskCompletion float64
	ReviewScore    float64
	ReasoningDepth float64
	ConsensusSpeed float64
	CostEfficiency float64
}

// ComputeFitness clamps each component to [0,1] and combines them into a
// clamped weighted composite.
func ComputeFitness(in FitnessInput, w Weights) domain.FitnessScores {
	s := domain.FitnessScores{
		TaskCompletion: clamp01(in.TaskCompletion),
		ReviewScore:    clamp01(in.ReviewScore),
		ReasoningDepth: clamp01(in.ReasoningDepth),
		ConsensusSpeed: clamp01(in.ConsensusSpeed),
		CostEfficiency: clamp01(in.CostEfficiency),
	}
	s.Composite = clamp01(
		w.TaskCompletion*s.TaskCompletion +
			w.ReviewScore*s.ReviewScore +
			w.ReasoningDepth*s.ReasoningDepth +
			w.ConsensusSpeed*s.ConsensusSpeed +
			w.CostEfficiency*s.CostEfficiency,
	)
	return s
}

// IsEliteReplacement reports whether candidate should replace current in the
// archive: strictly better composite, or equal composite with strictly
// better cost efficiency. Exact ties on both keep the incumbent.
func IsEliteReplacement(candidate, current domain.FitnessScores) bool {
	if candidate.Composite > current.Composite {
		return true
	}
	if candidate.Composite == current.Composite &&
		candidate.CostEfficiency > current.CostEfficiency {
		return true
	}
	return false
}

// NormalizeReviewScore maps a hub review verdict onto [0,1].
// Unknown verdicts score 0.
func NormalizeReviewScore(verdict string) float64 {
	switch verdict {
	case domain.VerdictApprove:
		return 1.0
	case domain.VerdictComment:
		return 0.5
	case domain.VerdictRequestChanges:
		return 0.0
	default:
		return 0.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
