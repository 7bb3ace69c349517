package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/discovery"
	"github.com/ryandielhenn/convoy/internal/config"
	"github.com/ryandielhenn/convoy/internal/logging"
	"github.com/ryandielhenn/convoy/internal/telemetry"
	"github.com/ryandielhenn/convoy/pkg/agent"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
	"github.com/ryandielhenn/convoy/pkg/node"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	flags := pflag.NewFlagSet("convoy-agent", pflag.ContinueOnError)
	cfgPath := flags.StringP("config", "c", "", "TOML config file")
	id := flags.String("id", "", "agent id (overrides config and "+config.EnvID+")")
	start := flags.String("start", "", "starting position x:y for the simulated drive")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatal(err)
		}
	} else {
		config.ApplyEnv(&cfg)
	}
	if *id != "" {
		cfg.ID = *id
	}
	if *start != "" {
		c, err := motion.ParseCoordinate(*start)
		if err != nil {
			log.Fatalf("--start: %v", err)
		}
		cfg.Motion.Start = c
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("agent exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.SetBuildInfo(version, gitSHA)
	logger = logger.With(zap.String("agent", cfg.ID))

	// 1. Radio
	logger.Info("joining multicast group", zap.String("group", cfg.Transport.Group), zap.Int("port", cfg.Transport.Port))
	tr, err := gossip.ListenUDP(cfg.UDP(), logger)
	if err != nil {
		return err
	}
	defer tr.Close()

	// 2. Engine and HTTP surface
	drive := motion.NewKinematic(cfg.Motion.Start, cfg.Kinematic())
	engine := agent.NewNetworkManager(gossip.NodeID(cfg.ID), tr, drive, cfg.AgentParams(), logger)
	host, _ := os.Hostname()
	n := node.NewNode(cfg.ID, node.AdvertiseAddr(cfg.HTTPAddr, host, "8080"))

	mux := http.NewServeMux()
	n.Routes(mux)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// 3. Optional etcd directory
	if len(cfg.Etcd.Endpoints) > 0 {
		if err := register(ctx, cfg, n, logger); err != nil {
			return err
		}
	}

	// 4. Protocol loop
	logger.Info("engine running", zap.Duration("tick", cfg.Protocol.Tick))
	return engine.Run(ctx, cfg.Protocol.Tick, n.Publish)
}

func register(ctx context.Context, cfg config.Config, n *node.Node, logger *zap.Logger) error {
	cli, err := discovery.NewClient(cfg.Etcd.Endpoints, logger.Named("etcd"))
	if err != nil {
		return fmt.Errorf("etcd client: %w", err)
	}

	// the keepalive lives as long as ctx, so no timeout here
	lease, stopKeepAlive, err := discovery.RegisterAgent(ctx, cli, cfg.Etcd.Prefix, cfg.ID, n.Addr(), cfg.Etcd.LeaseTTL)
	if err != nil {
		_ = cli.Close()
		return err
	}
	logger.Info("registered", zap.String("prefix", cfg.Etcd.Prefix), zap.Int64("lease", int64(lease)))
	context.AfterFunc(ctx, func() {
		stopKeepAlive()
		revokeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = cli.Revoke(revokeCtx, lease)
		_ = cli.Close()
	})

	go func() {
		err := discovery.WatchRoster(ctx, cli, cli, cfg.Etcd.Prefix, func(regs []discovery.Registration) {
			ids := discovery.IDs(regs)
			logger.Debug("directory changed", zap.Strings("agents", ids))
			n.SetRegistered(ids)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("directory watch ended", zap.Error(err))
		}
	}()
	return nil
}
