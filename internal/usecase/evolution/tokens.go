package evolution

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates the token cost of text. Used by the replay
// evaluator's costEfficiency component.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts with the cl100k_base BPE encoding, falling back to
// a word-based heuristic when the encoding cannot be loaded (offline hosts).
type TiktokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter returns a lazy counter; the encoding loads on first use.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{}
}

func (c *TiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		return heuristicTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter approximates tokens as words times 4/3. Deterministic and
// dependency-free; the default for tests.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	return heuristicTokens(text)
}

func heuristicTokens(text string) int {
	words := len(strings.Fields(text))
	return words * 4 / 3
}
