package niche

import (
	"testing"
	"time"

	"swarmhub/internal/domain"
)

func TestClassifyDomainKeywordHit(t *testing.T) {
	m := NewMatcher()
	tests := []struct {
		text string
		want string
	}{
		{"my code has a bug in this function", "coding"},
		{"can you cite a source for that study", "research"},
		{"please proofread my draft essay", "writing"},
		{"what's the token price on this market", "trading"},
		{"I can't login to my account, need help", "support"},
		{"good morning everyone", "general"},
		{"", "general"},
	}
	for _, tt := range tests {
		if got := m.ClassifyDomain(tt.text); got != tt.want {
			t.Errorf("ClassifyDomain(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyDomainCaseInsensitive(t *testing.T) {
	m := NewMatcher()
	if got := m.ClassifyDomain("COMPILE error in my CODE"); got != "coding" {
		t.Errorf("got %q, want coding", got)
	}
}

func TestClassifyDomainTieFavorsFirstDeclared(t *testing.T) {
	m := NewMatcher()
	// One hit each for coding ("bug") and research ("paper"); coding is
	// declared first.
	if got := m.ClassifyDomain("a bug in the paper"); got != "coding" {
		t.Errorf("got %q, want coding on tie", got)
	}
}

func TestClassifyDomainDeterministic(t *testing.T) {
	m := NewMatcher()
	first := m.ClassifyDomain("debug the api test")
	for i := 0; i < 50; i++ {
		if got := m.ClassifyDomain("debug the api test"); got != first {
			t.Fatalf("classification changed: %q vs %q", got, first)
		}
	}
}

func TestMatchNiche(t *testing.T) {
	m := NewMatcher()
	msg := domain.InboundMessage{
		Channel:   "telegram",
		ChatID:    "42",
		Text:      "help me debug this stack trace",
		Timestamp: time.Now(),
	}
	got := m.MatchNiche(msg)
	if got.Channel != "telegram" || got.Domain != "coding" {
		t.Errorf("MatchNiche = %+v", got)
	}
	if got.Key != "telegram-coding" {
		t.Errorf("Key = %q, want telegram-coding", got.Key)
	}
}

func TestDomainsIncludesGeneralLast(t *testing.T) {
	m := NewMatcher()
	domains := m.Domains()
	if len(domains) == 0 || domains[len(domains)-1] != DomainGeneral {
		t.Errorf("Domains() = %v, want general last", domains)
	}
}
