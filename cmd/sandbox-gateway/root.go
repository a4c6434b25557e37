package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arakoodev/k8s-cli-agents/internal/capability"
	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/internal/gateway"
	"github.com/arakoodev/k8s-cli-agents/internal/store"
	"github.com/arakoodev/k8s-cli-agents/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use: "sandbox-gateway",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRoot(); err != nil {
			log.Errorf("%+v", err)
			os.Exit(1)
		}
	},
}

func runRoot() error {
	cfg, err := initializeConfig()
	if err != nil {
		return err
	}
	logger.SetLogrus(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("error connecting to store: %w", err)
	}
	defer st.Close()

	keys := capability.NewKeySetFetcher(
		cfg.ControllerBaseURL,
		time.Duration(cfg.KeySetCacheTTLMs)*time.Millisecond,
		nil,
	)

	gw := gateway.New(cfg, st, keys)
	log.WithField("bind_addr", cfg.BindAddr).Info("starting sandbox-gateway")
	return gw.Run(ctx)
}

func initializeConfig() (*config.GatewayConfig, error) {
	cfg := config.DefaultGatewayConfig()
	configPath := v.GetString("config-file")
	if err := config.Load(v, configPath, cfg); err != nil {
		return nil, err
	}
	if err := config.ValidateAllGateway(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
