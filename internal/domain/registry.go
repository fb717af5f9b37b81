package domain

import "time"

// RegistryMode selects the routing path. Exhaustive: every switch over a
// RegistryMode should handle both values and reject anything else.
type RegistryMode string

const (
	// ModeSingle routes every message to the one promoted legacy agent.
	ModeSingle RegistryMode = "single"
	// ModeSwarm routes by niche classification against the agent directory.
	ModeSwarm RegistryMode = "swarm"
)

// SwarmAgentEntry binds one live agent to one niche.
type SwarmAgentEntry struct {
	AgentID        string    `json:"agent_id"`
	BlueprintID    string    `json:"blueprint_id"`
	NicheKey       string    `json:"niche_key"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RouteStats holds per-niche routing counters for observability and for
// detecting chronically unserved niches.
type RouteStats struct {
	Success  map[string]int `json:"success,omitempty"`
	Fallback int            `json:"fallback"`
	Unserved map[string]int `json:"unserved,omitempty"`
}

// SwarmRegistry is the root persisted document: agent directory, the
// MAP-Elites archive (one elite blueprint per niche key), routing telemetry,
// and hub/session identity. One JSON file per data directory.
type SwarmRegistry struct {
	Mode       RegistryMode      `json:"mode"`
	Agents     []SwarmAgentEntry `json:"agents"`
	Blueprints []TeamBlueprint   `json:"blueprints"`
	Generation int               `json:"generation"`
	Routing    RouteStats        `json:"routing"`

	// Hub identity, assigned on first successful initializeArchive.
	HubAgentID   string `json:"hub_agent_id,omitempty"`
	WorkspaceID  string `json:"workspace_id,omitempty"`
	HubSessionID string `json:"hub_session_id,omitempty"`

	// NicheProblems maps niche key → hub problem ID, filled lazily by
	// archive setup.
	NicheProblems map[string]string `json:"niche_problems,omitempty"`

	// Legacy single-agent fields, promoted during migration.
	AgentID        string `json:"agent_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	BaseURL        string `json:"base_url,omitempty"`
}

// LegacyAgentDocument is the pre-swarm single-agent on-disk format.
// It is migrated into a ModeSingle SwarmRegistry when the new-format
// file is absent.
type LegacyAgentDocument struct {
	AgentID        string `json:"agentId"`
	ConversationID string `json:"conversationId"`
	BaseURL        string `json:"baseUrl"`
}

// EmptyRegistry returns a fresh swarm-mode registry with no agents or elites.
func EmptyRegistry() *SwarmRegistry {
	return &SwarmRegistry{
		Mode:       ModeSwarm,
		Agents:     []SwarmAgentEntry{},
		Blueprints: []TeamBlueprint{},
		Routing: RouteStats{
			Success:  map[string]int{},
			Unserved: map[string]int{},
		},
		NicheProblems: map[string]string{},
	}
}
