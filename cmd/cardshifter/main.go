package main

import (
	"context"
	"errors"
	"fmt"
	gonet "net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cardshifter/server/internal/config"
	"github.com/cardshifter/server/internal/data"
	"github.com/cardshifter/server/internal/game"
	"github.com/cardshifter/server/internal/handler"
	"github.com/cardshifter/server/internal/lobby"
	"github.com/cardshifter/server/internal/net"
	"github.com/cardshifter/server/internal/net/packet"
	"github.com/cardshifter/server/internal/persist"
	"github.com/cardshifter/server/internal/scripting"
	"github.com/cardshifter/server/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            Cardshifter  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mServer:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("flush traces", zap.Error(err))
		}
	}()

	// 4. Database and migrations
	printSection("Database")
	var store lobby.Store
	if cfg.Database.DSN != "" {
		openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		db, err := persist.Open(openCtx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK(fmt.Sprintf("connected (%s)", db.Dialect()))

		if err := db.Migrate(openCtx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		store = persist.NewStore(db)
	} else {
		printOK("persistence disabled")
	}
	fmt.Println()

	// 5. Rulesets
	printSection("Rulesets")
	rulesets, err := data.LoadRulesetTable(cfg.Game.RulesetsDir)
	if err != nil {
		return fmt.Errorf("load rulesets: %w", err)
	}
	if rulesets.Get(cfg.Game.Ruleset) == nil {
		return fmt.Errorf("default ruleset %q not found (have %s)", cfg.Game.Ruleset, strings.Join(rulesets.Names(), ", "))
	}
	printStat("rulesets", rulesets.Count())
	fmt.Println()

	// 6. Automation policy
	policy, closePolicy, err := newPolicy(cfg.Game, log)
	if err != nil {
		return fmt.Errorf("ai policy: %w", err)
	}
	defer closePolicy()

	// 7. Lobby and handlers
	lob := lobby.New(ctx, lobby.Options{
		Rulesets:       rulesets,
		DefaultRuleset: cfg.Game.Ruleset,
		Policy:         policy,
		AITick:         cfg.Game.AITick,
		AIName:         cfg.Game.AIName,
		Store:          store,
	}, log)

	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, &handler.Deps{Lobby: lob, Log: log})

	// 8. Network server
	netServer, err := net.NewServer(cfg.Network.BindAddress, net.Options{
		OutQueueSize:     cfg.Network.OutQueueSize,
		WriteTimeout:     cfg.Network.WriteTimeout,
		MaxFrame:         cfg.Network.MaxFrameSize,
		PacketsPerSecond: cfg.Network.PacketsPerSecond,
	}, pktReg, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	netServer.OnClose(func(sess *net.Session) {
		lob.Disconnect(sess)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		netServer.AcceptLoop()
		return nil
	})
	if cfg.Network.WebSocketAddress != "" {
		g.Go(func() error {
			return netServer.ServeWebSocket(gctx, cfg.Network.WebSocketAddress)
		})
	}

	healthServer := health.NewServer()
	if cfg.Health.Address != "" {
		lis, err := gonet.Listen("tcp", cfg.Health.Address)
		if err != nil {
			return fmt.Errorf("health listener: %w", err)
		}
		grpcServer := grpc.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		g.Go(func() error {
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
		printReady(fmt.Sprintf("health service %s", lis.Addr()))
	}
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// Display server ready section
	printSection("Server ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	if cfg.Network.WebSocketAddress != "" {
		printReady(fmt.Sprintf("websocket on %s/ws", cfg.Network.WebSocketAddress))
	}
	printReady(fmt.Sprintf("default ruleset %s (ai tick: %s)", cfg.Game.Ruleset, cfg.Game.AITick))
	fmt.Println()

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		healthServer.Shutdown()
		netServer.Shutdown()
		lob.Shutdown()
		return nil
	})

	err = g.Wait()
	uptime := time.Since(time.Unix(cfg.Server.StartTime, 0)).Round(time.Second)
	log.Info("server stopped", zap.Duration("uptime", uptime))
	return err
}

func newPolicy(cfg config.GameConfig, log *zap.Logger) (game.Policy, func(), error) {
	switch cfg.AIPolicy {
	case "", "random":
		return game.NewRandomPolicy(time.Now().UnixNano()), func() {}, nil
	case "lua":
		engine, err := scripting.NewEngine(cfg.AIScript, log)
		if err != nil {
			return nil, nil, err
		}
		return engine, engine.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown policy %q", cfg.AIPolicy)
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
