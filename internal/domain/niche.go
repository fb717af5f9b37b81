package domain

import "fmt"

// NicheDescriptor identifies the (channel, domain) pairing a message belongs to.
// It is derived per message and never persisted on its own.
type NicheDescriptor struct {
	Channel string `json:"channel"`
	Domain  string `json:"domain"`
	Key     string `json:"key"` // "<channel>-<domain>"
}

// NewNiche builds a descriptor with its composite key.
func NewNiche(channel, domain string) NicheDescriptor {
	return NicheDescriptor{
		Channel: channel,
		Domain:  domain,
		Key:     NicheKey(channel, domain),
	}
}

// NicheKey returns the composite archive key for a (channel, domain) pair.
func NicheKey(channel, domain string) string {
	return fmt.Sprintf("%s-%s", channel, domain)
}
