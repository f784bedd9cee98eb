package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/weisyn/bridge-go/config"
	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/metrics"
	"github.com/weisyn/bridge-go/server"
	"github.com/weisyn/bridge-go/services/settlement"
	"github.com/weisyn/bridge-go/store"
	"github.com/weisyn/bridge-go/utils"
)

func newServeCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var (
		cfgPath string
		devMint []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the settlement node",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if err := config.Load(&cfg, cmd.Flags(), path); err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := log.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			custody := settlement.NewMemoryCustody()
			if err := applyDevMint(custody, devMint); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, &cfg, path, custody, logger)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.bridge/config.toml)")
	cmd.Flags().StringArrayVar(&devMint, "dev-mint", nil, "credit the in-memory custody at startup: token:account:amount (repeatable)")
	config.BindFlags(cmd.Flags(), &cfg)
	return cmd
}

// runNode 组装并运行节点直到 ctx 取消
//
// **流程**：
// 1. 打开状态库（DataDir 为空时使用内存库）
// 2. 注册指标、创建事件中心与结算引擎
// 3. 启动接入层；配置文件存在时监听 [quorum] 变更
func runNode(ctx context.Context, cfg *config.Config, cfgPath string, custody settlement.Custody, logger log.Logger) error {
	// 1. 状态库
	var (
		db  *store.LevelDB
		err error
	)
	if cfg.DataDir != "" {
		db, err = store.Open(cfg.DataDir, cfg.SyncWrites)
	} else {
		logger.Warn("data dir not set, state is kept in memory")
		db, err = store.OpenMemory()
	}
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 引擎
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sc, err := cfg.ServiceConfig()
	if err != nil {
		return err
	}
	hub := server.NewHub(logger)
	engine, err := settlement.NewService(sc,
		settlement.WithStore(db),
		settlement.WithCustody(custody),
		settlement.WithEventSink(hub),
		settlement.WithMetrics(recorder),
		settlement.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	logger.Info("engine ready",
		"owner", engine.Owner().Hex(),
		"validators", len(engine.GetActiveValidators()),
		"domainSeparator", engine.DomainSeparator().Hex(),
		"quorum", engine.QuorumPolicy().String(),
	)

	srv, err := server.New(server.Config{
		HTTPAddr:        cfg.HTTPAddr,
		GRPCAddr:        cfg.GRPCAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, engine, hub, server.Options{
		Nonces:   db,
		Registry: registry,
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	// 3. 运行
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if config.FileExists(cfgPath) {
		watcher := config.NewWatcher(cfgPath, cfg.Quorum, engine.SetQuorumPolicy, logger)
		g.Go(func() error { return watcher.Run(gctx) })
	}
	return g.Wait()
}

// applyDevMint 解析 token:account:amount 并写入内存托管
func applyDevMint(custody *settlement.MemoryCustody, entries []string) error {
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return fmt.Errorf("dev-mint %q: expected token:account:amount", entry)
		}
		token, err := utils.ParseAddress(parts[0])
		if err != nil {
			return fmt.Errorf("dev-mint token: %w", err)
		}
		account, err := utils.ParseAddress(parts[1])
		if err != nil {
			return fmt.Errorf("dev-mint account: %w", err)
		}
		amount, err := utils.ParseAmount(parts[2])
		if err != nil {
			return fmt.Errorf("dev-mint amount: %w", err)
		}
		custody.Mint(token, account, amount)
	}
	return nil
}
