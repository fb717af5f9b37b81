// Package niche classifies inbound messages into (channel, domain) niches.
package niche

import (
	"strings"

	"swarmhub/internal/domain"
)

// DomainGeneral is the fallback when no keyword set scores a hit.
const DomainGeneral = "general"

// domainKeywords is the fixed, ordered classification table. Order matters:
// on a tied score the earlier entry wins.
var domainKeywords = []struct {
	name     string
	keywords []string
}{
	{"coding", []string{"code", "bug", "compile", "function", "debug", "deploy", "refactor", "api", "test", "stack trace"}},
	{"research", []string{"research", "paper", "study", "source", "cite", "evidence", "survey", "analysis"}},
	{"writing", []string{"write", "draft", "edit", "essay", "article", "blog", "proofread", "summarize"}},
	{"trading", []string{"price", "token", "market", "trade", "chart", "portfolio", "swap", "liquidity"}},
	{"support", []string{"help", "issue", "broken", "error", "refund", "account", "login", "reset"}},
}

// Matcher is a pure classifier: no state, no side effects.
type Matcher struct{}

// NewMatcher returns a Matcher.
func NewMatcher() *Matcher { return &Matcher{} }

// ClassifyDomain scores each keyword set by case-insensitive substring hits
// and returns the highest scorer. Ties favor the first-declared domain; zero
// hits fall back to DomainGeneral. Total: every input classifies.
func (m *Matcher) ClassifyDomain(text string) string {
	lower := strings.ToLower(text)

	best := DomainGeneral
	bestScore := 0
	for _, d := range domainKeywords {
		score := 0
		for _, kw := range d.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = d.name
			bestScore = score
		}
	}
	return best
}

// MatchNiche derives the niche descriptor for an inbound message.
func (m *Matcher) MatchNiche(msg domain.InboundMessage) domain.NicheDescriptor {
	return domain.NewNiche(msg.Channel, m.ClassifyDomain(msg.Text))
}

// Domains returns the declared domain names plus the general fallback,
// in declaration order. Used to enumerate the niche space.
func (m *Matcher) Domains() []string {
	out := make([]string, 0, len(domainKeywords)+1)
	for _, d := range domainKeywords {
		out = append(out, d.name)
	}
	return append(out, DomainGeneral)
}
