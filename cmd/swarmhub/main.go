package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"swarmhub/internal/adapter/channel"
	"swarmhub/internal/adapter/gateway"
	"swarmhub/internal/adapter/hub"
	"swarmhub/internal/adapter/provisioner"
	"swarmhub/internal/adapter/runtime"
	"swarmhub/internal/adapter/transcript"
	"swarmhub/internal/domain"
	"swarmhub/internal/infra/config"
	"swarmhub/internal/infra/logger"
	"swarmhub/internal/usecase/eventbus"
	"swarmhub/internal/usecase/evolution"
	"swarmhub/internal/usecase/niche"
	"swarmhub/internal/usecase/scheduling"
	"swarmhub/internal/usecase/swarm"
)

const drainInterval = 250 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("SWARMHUB_CONFIG"); p != "" {
		return p
	}
	return "./config.yaml"
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	if err := os.MkdirAll(cfg.Swarm.DataDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	bus := eventbus.New(log)
	defer bus.Close()

	store, err := swarm.NewStore(cfg.Swarm.DataDir, log)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if cfg.Swarm.Mode == "swarm" {
		store.SetMode(domain.ModeSwarm)
	}

	matcher := niche.NewMatcher()

	var exec domain.AgentExecutionService
	if cfg.Runtime.BaseURL != "" {
		exec = runtime.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.Timeout, log)
	}

	sessions := newSessionCache(exec, store, matcher)
	mgr := swarm.NewManager(store, matcher, sessions.process, log)
	mgr.SetEventBus(bus)
	mgr.SetMaxConcurrent(cfg.Swarm.MaxConcurrent)

	if cfg.Gateway.Enabled {
		gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, log)
		bindGatewaySession(gw, store, log)
		mgr.SetGateway(gw)
	}

	var consensus domain.ConsensusHub
	if cfg.Hub.BaseURL != "" {
		consensus = hub.NewBreakerHub(
			hub.NewClient(cfg.Hub.BaseURL, cfg.Hub.Timeout, cfg.Hub.RatePerSecond, cfg.Hub.RateBurst, log), log)
	}

	engine, err := buildEngine(cfg, store, consensus, exec, matcher, log, bus)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduling.New(log)
	sched.RegisterAction(scheduling.ActionDrainQueues, func(ctx context.Context) error {
		mgr.ProcessQueues(ctx)
		return nil
	})
	sched.RegisterAction(scheduling.ActionRunGeneration, func(ctx context.Context) error {
		if engine == nil {
			return domain.ErrUnavailable
		}
		return engine.RunGeneration(ctx)
	})
	if cfg.Scheduler.Enabled {
		for _, t := range cfg.Scheduler.Tasks {
			task := scheduling.Task{Name: t.Name, Schedule: t.Schedule, Action: scheduling.Action(t.Action)}
			if err := sched.AddTask(task); err != nil {
				return fmt.Errorf("scheduler task %s: %w", t.Name, err)
			}
		}
		go sched.Start(ctx)
		defer sched.Stop()
	}

	if cfg.Channels.HTTP.Enabled {
		httpCh := channel.NewHTTPChannel(cfg.Channels.HTTP.Addr, log)
		handler := func(ctx context.Context, msg domain.InboundMessage) error {
			route, err := mgr.RouteMessage(msg)
			if err != nil {
				return err
			}
			if route == nil {
				// Routing miss: counters already recorded it, reply generically.
				return domain.ErrAgentNotFound
			}
			mgr.EnqueueMessage(route.AgentID, msg, httpCh)
			return nil
		}
		if err := httpCh.Start(ctx, handler); err != nil {
			return fmt.Errorf("http channel: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := httpCh.Stop(stopCtx); err != nil {
				log.Error("http channel shutdown error", "error", err)
			}
		}()
	}

	log.Info("swarmhub started",
		"mode", cfg.Swarm.Mode,
		"evolution", engine != nil,
		"http_addr", cfg.Channels.HTTP.Addr)

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
			mgr.ProcessQueues(ctx)
		}
	}
}

// bindGatewaySession resumes the persisted reasoning session or starts a new
// one, and records the bound ID so the evolution engine threads it as the
// session continuity token. Best-effort: without a session the gateway
// degrades to a no-op and hub calls go untokened.
func bindGatewaySession(gw *gateway.Client, store *swarm.Store, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agentID, workspaceID, sessionID := store.HubIdentity()
	bound, err := gw.BindSession(ctx, sessionID)
	if err != nil {
		log.Warn("reasoning session unavailable", "error", err)
		return
	}
	if bound != sessionID {
		store.SetHubIdentity(agentID, workspaceID, bound)
	}
	log.Info("reasoning session bound", "session_id", bound)
}

// buildEngine assembles the evolution engine, or returns nil when evolution
// is disabled.
func buildEngine(
	cfg *config.Config,
	store *swarm.Store,
	consensus domain.ConsensusHub,
	exec domain.AgentExecutionService,
	matcher *niche.Matcher,
	log *slog.Logger,
	bus domain.EventBus,
) (*evolution.Engine, error) {
	if !cfg.Evolution.Enabled {
		return nil, nil
	}

	var source evolution.TranscriptSource
	if cfg.Transcripts.DBPath != "" {
		sqlStore, err := transcript.NewSQLiteStore(cfg.Transcripts.DBPath)
		if err != nil {
			return nil, fmt.Errorf("transcript corpus: %w", err)
		}
		if cfg.Transcripts.FixturesPath != "" {
			n, err := sqlStore.SeedFromYAML(context.Background(), cfg.Transcripts.FixturesPath)
			if err != nil {
				return nil, fmt.Errorf("seed transcripts: %w", err)
			}
			log.Info("transcript corpus seeded", "count", n)
		}
		source = sqlStore
	} else {
		source = transcript.NewMemoryStore()
	}

	evaluator := evolution.NewEvaluator(exec, source, evolution.NewTiktokenCounter(), log)

	seed := cfg.Evolution.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// One niche per (http channel, domain) pair; "general" is the fallback.
	var niches []domain.NicheDescriptor
	for _, d := range matcher.Domains() {
		niches = append(niches, domain.NewNiche("http", d))
	}

	prov := provisioner.NewClient(cfg.Runtime.BaseURL, log)

	engine := evolution.NewEngine(store, consensus, prov, evaluator, niches, rng, log)
	engine.SetPopulationSize(cfg.Evolution.PopulationSize)
	engine.SetEventBus(bus)

	if err := engine.InitializeArchive(context.Background(), niches); err != nil {
		return nil, fmt.Errorf("initialize archive: %w", err)
	}
	return engine, nil
}

// sessionCache keeps one live execution session per routed agent. Sessions
// are created lazily from the niche's elite blueprint, or a bare default
// when the archive has no elite yet.
type sessionCache struct {
	exec    domain.AgentExecutionService
	store   *swarm.Store
	matcher *niche.Matcher

	mu       sync.Mutex
	sessions map[string]domain.AgentSession
}

func newSessionCache(exec domain.AgentExecutionService, store *swarm.Store, matcher *niche.Matcher) *sessionCache {
	return &sessionCache{
		exec:     exec,
		store:    store,
		matcher:  matcher,
		sessions: make(map[string]domain.AgentSession),
	}
}

// process is the swarm.ProcessFunc run by the queue drainer.
func (c *sessionCache) process(ctx context.Context, agentID string, msg domain.InboundMessage, reasoning string, ch domain.Channel) error {
	if c.exec == nil {
		return domain.NewDomainError("process", domain.ErrUnavailable, "no execution runtime configured")
	}

	sess, err := c.session(ctx, agentID, msg)
	if err != nil {
		return err
	}

	text := msg.Text
	if reasoning != "" {
		text = "Context from prior reasoning:\n" + reasoning + "\n\n" + msg.Text
	}

	reply, err := sess.Send(ctx, text)
	if err != nil {
		// Drop the session so the next message gets a fresh one.
		c.mu.Lock()
		delete(c.sessions, agentID)
		c.mu.Unlock()
		return err
	}

	return ch.Send(ctx, domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Text:    reply,
	})
}

func (c *sessionCache) session(ctx context.Context, agentID string, msg domain.InboundMessage) (domain.AgentSession, error) {
	c.mu.Lock()
	if sess, ok := c.sessions[agentID]; ok {
		c.mu.Unlock()
		return sess, nil
	}
	c.mu.Unlock()

	n := c.matcher.MatchNiche(msg)
	bp := c.store.GetElite(n)
	if bp == nil {
		bp = defaultBlueprint(n)
	}

	sess, err := c.exec.CreateSession(ctx, bp)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessions[agentID] = sess
	c.mu.Unlock()
	return sess, nil
}

// defaultBlueprint is the pre-evolution team: a single coordinator.
func defaultBlueprint(n domain.NicheDescriptor) *domain.TeamBlueprint {
	return &domain.TeamBlueprint{
		ID:         domain.NewID(),
		Name:       "default-" + n.Key,
		Generation: 0,
		Agents: []domain.AgentSpec{{
			Role:         domain.RoleCoordinator,
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a helpful assistant handling " + n.Domain + " requests.",
		}},
		CoordinationStrategy: domain.StrategySequential,
		Niche:                n,
	}
}
