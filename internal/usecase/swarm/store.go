// Package swarm holds the persistent agent registry and the message router.
package swarm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"

	"swarmhub/internal/domain"
)

const (
	registryFile = "swarm.json"
	legacyFile   = "agent.json"
)

// registrySchema gates the persisted document on load. Documents that fail
// validation degrade to the empty registry rather than poisoning the process.
const registrySchema = `{
  "type": "object",
  "required": ["mode", "agents", "blueprints"],
  "properties": {
    "mode":       {"type": "string", "enum": ["single", "swarm"]},
    "agents":     {"type": "array"},
    "blueprints": {"type": "array"},
    "generation": {"type": "integer", "minimum": 0}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func registryDocSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.NewCompiler().Compile([]byte(registrySchema))
	})
	return compiledSchema, schemaErr
}

// Store is the durable swarm registry: agent directory, one elite blueprint
// per niche key, routing telemetry, and the generation clock.
//
// Every mutator performs a full read-modify-write of a single JSON file under
// a process-local mutex. There is no cross-process locking; concurrent
// writers from multiple processes are unsupported. Save failures are logged
// and swallowed — in-memory state stays authoritative for the process.
type Store struct {
	mu     sync.RWMutex
	dir    string
	reg    *domain.SwarmRegistry
	logger *slog.Logger
}

// NewStore loads (or migrates, or creates) the registry under dir.
// Corrupt or missing files never fail construction: they degrade to an
// empty registry with a logged warning.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, domain.WrapOp("swarmstore: create dir", err)
	}
	s := &Store{dir: dir, logger: logger}
	s.reg = s.load()
	return s, nil
}

func (s *Store) path() string       { return filepath.Join(s.dir, registryFile) }
func (s *Store) legacyPath() string { return filepath.Join(s.dir, legacyFile) }

// load reads the current-format file, falling back to legacy migration and
// then to an empty registry. It never returns nil and never fails.
func (s *Store) load() *domain.SwarmRegistry {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("registry unreadable, starting empty", "path", s.path(), "error", err)
			return domain.EmptyRegistry()
		}
		return s.migrateLegacy()
	}

	if err := validateRegistryDoc(data); err != nil {
		s.logger.Warn("registry failed validation, starting empty", "path", s.path(), "error", err)
		return domain.EmptyRegistry()
	}

	var reg domain.SwarmRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		s.logger.Warn("registry corrupt, starting empty", "path", s.path(), "error", err)
		return domain.EmptyRegistry()
	}
	normalizeRegistry(&reg)
	return &reg
}

// migrateLegacy promotes a pre-swarm single-agent document into a ModeSingle
// registry. Absence of both files yields the empty swarm registry.
func (s *Store) migrateLegacy() *domain.SwarmRegistry {
	data, err := os.ReadFile(s.legacyPath())
	if err != nil {
		return domain.EmptyRegistry()
	}
	var legacy domain.LegacyAgentDocument
	if err := json.Unmarshal(data, &legacy); err != nil || legacy.AgentID == "" {
		s.logger.Warn("legacy agent document unusable, starting empty", "path", s.legacyPath(), "error", err)
		return domain.EmptyRegistry()
	}

	reg := domain.EmptyRegistry()
	reg.Mode = domain.ModeSingle
	reg.AgentID = legacy.AgentID
	reg.ConversationID = legacy.ConversationID
	reg.BaseURL = legacy.BaseURL
	s.logger.Info("migrated legacy single-agent document", "agent_id", legacy.AgentID)

	// Persist the migrated form immediately so the legacy file is no longer
	// the source of truth.
	s.persistLocked(reg)
	return reg
}

func validateRegistryDoc(data []byte) error {
	schema, err := registryDocSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	result := schema.Validate(doc)
	if !result.IsValid() {
		return fmt.Errorf("%s: %w", result.Error(), domain.ErrRegistryCorrupt)
	}
	return nil
}

func normalizeRegistry(reg *domain.SwarmRegistry) {
	if reg.Mode == "" {
		reg.Mode = domain.ModeSwarm
	}
	if reg.Agents == nil {
		reg.Agents = []domain.SwarmAgentEntry{}
	}
	if reg.Blueprints == nil {
		reg.Blueprints = []domain.TeamBlueprint{}
	}
	if reg.Routing.Success == nil {
		reg.Routing.Success = map[string]int{}
	}
	if reg.Routing.Unserved == nil {
		reg.Routing.Unserved = map[string]int{}
	}
	if reg.NicheProblems == nil {
		reg.NicheProblems = map[string]string{}
	}
}

// persistLocked writes the registry atomically. Callers hold s.mu (or own
// the registry exclusively, as during load). Failures are logged, never
// propagated: in-memory state remains authoritative.
func (s *Store) persistLocked(reg *domain.SwarmRegistry) {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		s.logger.Error("registry marshal failed", "error", err)
		return
	}
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		s.logger.Error("registry write failed", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		s.logger.Error("registry rename failed", "path", s.path(), "error", err)
	}
}

// Mode reports the routing mode.
func (s *Store) Mode() domain.RegistryMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Mode
}

// SetMode switches the routing mode.
func (s *Store) SetMode(mode domain.RegistryMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Mode = mode
	s.persistLocked(s.reg)
}

// SingleAgent returns the promoted legacy agent binding for ModeSingle
// routing: (agentID, conversationID). Empty agentID means none.
func (s *Store) SingleAgent() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.AgentID, s.reg.ConversationID
}

// AddAgent appends an entry to the agent directory.
func (s *Store) AddAgent(entry domain.SwarmAgentEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Agents = append(s.reg.Agents, entry)
	s.persistLocked(s.reg)
}

// RemoveAgent drops the entry for agentID. Unknown IDs are a no-op.
func (s *Store) RemoveAgent(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.reg.Agents {
		if a.AgentID == agentID {
			s.reg.Agents = append(s.reg.Agents[:i], s.reg.Agents[i+1:]...)
			s.persistLocked(s.reg)
			return
		}
	}
}

// GetAgentForNiche returns the directory entry exactly matching nicheKey,
// or nil. There is deliberately no fuzzy fallback to a nearby niche.
func (s *Store) GetAgentForNiche(nicheKey string) *domain.SwarmAgentEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.reg.Agents {
		if s.reg.Agents[i].NicheKey == nicheKey {
			entry := s.reg.Agents[i]
			return &entry
		}
	}
	return nil
}

// SetAgentForNiche upserts the binding for nicheKey. An existing entry keeps
// its CreatedAt and ConversationID; only the agent and blueprint change.
func (s *Store) SetAgentForNiche(agentID, blueprintID, nicheKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reg.Agents {
		if s.reg.Agents[i].NicheKey == nicheKey {
			s.reg.Agents[i].AgentID = agentID
			s.reg.Agents[i].BlueprintID = blueprintID
			s.persistLocked(s.reg)
			return
		}
	}
	s.reg.Agents = append(s.reg.Agents, domain.SwarmAgentEntry{
		AgentID:     agentID,
		BlueprintID: blueprintID,
		NicheKey:    nicheKey,
		CreatedAt:   time.Now().UTC(),
	})
	s.persistLocked(s.reg)
}

// SetBlueprint replaces-or-inserts the elite for bp.Niche.Key. Last write
// wins: the archive holds only the current elite per niche, never history.
func (s *Store) SetBlueprint(bp domain.TeamBlueprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reg.Blueprints {
		if s.reg.Blueprints[i].Niche.Key == bp.Niche.Key {
			s.reg.Blueprints[i] = bp
			s.persistLocked(s.reg)
			return
		}
	}
	s.reg.Blueprints = append(s.reg.Blueprints, bp)
	s.persistLocked(s.reg)
}

// GetElite returns the archived elite for the niche, or nil.
func (s *Store) GetElite(niche domain.NicheDescriptor) *domain.TeamBlueprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.reg.Blueprints {
		if s.reg.Blueprints[i].Niche.Key == niche.Key {
			bp := s.reg.Blueprints[i]
			return &bp
		}
	}
	return nil
}

// Elites returns a copy of the full archive.
func (s *Store) Elites() []domain.TeamBlueprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TeamBlueprint(nil), s.reg.Blueprints...)
}

// IncrementRouteSuccess bumps the per-niche success counter.
func (s *Store) IncrementRouteSuccess(nicheKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Routing.Success[nicheKey]++
	s.persistLocked(s.reg)
}

// IncrementRouteFallback bumps the global fallback counter.
func (s *Store) IncrementRouteFallback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Routing.Fallback++
	s.persistLocked(s.reg)
}

// IncrementUnservedNiche bumps the per-niche unserved counter, the signal
// for chronically unserved niches.
func (s *Store) IncrementUnservedNiche(nicheKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Routing.Unserved[nicheKey]++
	s.persistLocked(s.reg)
}

// RouteStats returns a copy of the routing counters.
func (s *Store) RouteStats() domain.RouteStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := domain.RouteStats{
		Fallback: s.reg.Routing.Fallback,
		Success:  make(map[string]int, len(s.reg.Routing.Success)),
		Unserved: make(map[string]int, len(s.reg.Routing.Unserved)),
	}
	for k, v := range s.reg.Routing.Success {
		out.Success[k] = v
	}
	for k, v := range s.reg.Routing.Unserved {
		out.Unserved[k] = v
	}
	return out
}

// Generation reports the process-wide evolutionary clock.
func (s *Store) Generation() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Generation
}

// SetGeneration records the generation of the most recently merged blueprint.
func (s *Store) SetGeneration(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.Generation = gen
	s.persistLocked(s.reg)
}

// HubIdentity returns (hubAgentID, workspaceID, sessionID).
func (s *Store) HubIdentity() (string, string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.HubAgentID, s.reg.WorkspaceID, s.reg.HubSessionID
}

// SetHubIdentity records the hub registration assigned during archive setup.
func (s *Store) SetHubIdentity(agentID, workspaceID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.HubAgentID = agentID
	s.reg.WorkspaceID = workspaceID
	s.reg.HubSessionID = sessionID
	s.persistLocked(s.reg)
}

// NicheProblem returns the hub problem ID recorded for a niche key, or "".
func (s *Store) NicheProblem(nicheKey string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.NicheProblems[nicheKey]
}

// SetNicheProblem records the hub problem ID for a niche key.
func (s *Store) SetNicheProblem(nicheKey, problemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.NicheProblems[nicheKey] = problemID
	s.persistLocked(s.reg)
}

// Snapshot returns a deep-enough copy of the registry for observability.
func (s *Store) Snapshot() domain.SwarmRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := *s.reg
	out.Agents = append([]domain.SwarmAgentEntry(nil), s.reg.Agents...)
	out.Blueprints = append([]domain.TeamBlueprint(nil), s.reg.Blueprints...)
	return out
}
