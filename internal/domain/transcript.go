package domain

// RecordedTurn is one user turn of a recorded conversation together with the
// phrases a good reply is expected to cover.
type RecordedTurn struct {
	UserText        string   `json:"user_text" yaml:"user_text"`
	ExpectedPhrases []string `json:"expected_phrases,omitempty" yaml:"expected_phrases,omitempty"`
}

// RecordedConversation is a replayable test conversation for one domain.
// The replay evaluator scores candidate blueprints against these.
type RecordedConversation struct {
	ID     string         `json:"id" yaml:"id"`
	Domain string         `json:"domain" yaml:"domain"`
	Turns  []RecordedTurn `json:"turns" yaml:"turns"`
}
