package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Yuvaramesh/sales-agent/agent/agents/delegate"
	"github.com/Yuvaramesh/sales-agent/agent/agents/orchestrator"
	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/inventory"
	llmx "github.com/Yuvaramesh/sales-agent/agent/llm"
	memoryx "github.com/Yuvaramesh/sales-agent/agent/memory"
	"github.com/Yuvaramesh/sales-agent/agent/order"
	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	"github.com/Yuvaramesh/sales-agent/agent/session"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
	"github.com/Yuvaramesh/sales-agent/agent/tool"
	"github.com/Yuvaramesh/sales-agent/agent/websearch"
	configx "github.com/Yuvaramesh/sales-agent/pkg/config"
	qstashx "github.com/Yuvaramesh/sales-agent/pkg/qstash"
	"github.com/Yuvaramesh/sales-agent/server"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides APP_PORT)")
	return cmd
}

func runServe(ctx context.Context, port int) error {
	appCfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return err
	}
	if port > 0 {
		appCfg.Port = port
	}

	dbCfg, err := configx.New[persistence.Config]("DATABASE")
	if err != nil {
		return err
	}
	gateway, err := persistence.Open(ctx, *dbCfg)
	if err != nil {
		return fmt.Errorf("open persistence: %w", err)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			log.Warn().Err(err).Msg("close persistence")
		}
	}()

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return err
	}
	summarizer, err := llmx.NewInvoker(llmCfg.OpenRouterFor(contractx.AgentTypeSummarizer))
	if err != nil {
		return fmt.Errorf("create summarizer: %w", err)
	}

	catalog := tool.NewCatalog(
		tool.WithVehicleFinder(vehicleFinder(gateway)),
		tool.WithWebSearcher(webSearcher()),
		tool.WithUserLookup(gateway),
	)
	registry, err := delegate.NewRegistry(ctx, *llmCfg, catalog)
	if err != nil {
		return fmt.Errorf("build agents: %w", err)
	}

	compactor := memoryx.NewCompactor(summarizer, memoryx.WithPolicy(memoryx.Policy{
		SummaryMaxTokens: llmCfg.SummaryMaxTokens,
	}))
	sessionOpts := []session.Option{
		session.WithSummarizer(summarizer),
		session.WithLLMTimeout(appCfg.LLMTimeout),
		session.WithWriteTimeout(appCfg.WriteTimeout),
	}
	if store := snapshotStore(); store != nil {
		sessionOpts = append(sessionOpts, session.WithSnapshotStore(store))
	}
	sessions := session.NewManager(gateway, compactor, sessionOpts...)

	orderOpts := []order.Option{
		order.WithPersister(sessions),
		order.WithWriteTimeout(appCfg.WriteTimeout),
	}
	if publisher := orderPublisher(); publisher != nil {
		orderOpts = append(orderOpts, order.WithPublisher(publisher))
	}
	engine := order.NewEngine(gateway, orderOpts...)

	svc, err := orchestrator.New(sessions, engine, registry.Supervisor, orchestrator.Config{
		TurnLimit:       appCfg.TurnLimit,
		DelegateTimeout: appCfg.DelegateTimeout,
	})
	if err != nil {
		return err
	}

	janitor, err := session.NewJanitor(sessions, appCfg.JanitorSchedule, appCfg.SessionIdleTTL)
	if err != nil {
		return err
	}
	janitor.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		janitor.Stop(sctx)
		sessions.EvictIdle(sctx, time.Nanosecond)
	}()

	log.Info().
		Str("driver", dbCfg.Driver).
		Int("turn_limit", appCfg.TurnLimit).
		Str("janitor_schedule", appCfg.JanitorSchedule).
		Msg("sales agent ready")

	return server.Start(ctx, server.Options{
		Service: svc,
		Port:    appCfg.Port,
		Debug:   appCfg.Debug,
	})
}

func vehicleFinder(gateway persistence.Gateway) contractx.VehicleFinder {
	switch g := gateway.(type) {
	case *persistence.BunGateway:
		return inventory.NewBunFinder(g.DB())
	case *persistence.MongoGateway:
		return inventory.NewMongoFinder(g.Database())
	default:
		log.Warn().Msg("in-memory inventory is empty")
		return inventory.NewMemoryFinder()
	}
}

func webSearcher() contractx.WebSearcher {
	cfg, err := configx.New[websearch.Config]("TAVILY")
	if err != nil {
		log.Warn().Err(err).Msg("web search config invalid, search disabled")
		return nil
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("TAVILY_API_KEY not set, search disabled")
		return nil
	}
	return websearch.NewTavilyClient(*cfg)
}

func snapshotStore() statex.Store {
	if !configx.Present("UPSTASH_REDIS") {
		return nil
	}
	cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	if err != nil {
		log.Warn().Err(err).Msg("upstash config invalid, snapshots disabled")
		return nil
	}
	store, err := statex.NewUpstashRedisStore(*cfg)
	if err != nil {
		log.Warn().Err(err).Msg("upstash store unavailable, snapshots disabled")
		return nil
	}
	return store
}

func orderPublisher() order.Publisher {
	if !configx.Present("QSTASH") {
		return nil
	}
	cfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		log.Warn().Err(err).Msg("qstash config invalid, order notifications disabled")
		return nil
	}
	client, err := qstashx.NewClient(*cfg)
	if err != nil {
		log.Warn().Err(err).Msg("qstash client unavailable, order notifications disabled")
		return nil
	}
	return client
}
