package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/arakoodev/k8s-cli-agents/internal/capability"
	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/internal/controller"
	"github.com/arakoodev/k8s-cli-agents/internal/orchestrator"
	"github.com/arakoodev/k8s-cli-agents/internal/store"
	"github.com/arakoodev/k8s-cli-agents/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use: "sandbox-controller",
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

	if err := store.Migrate(cfg.DB); err != nil {
		return fmt.Errorf("error running store migrations: %w", err)
	}

	clientset, err := buildKubernetesClient()
	if err != nil {
		return fmt.Errorf("error building kubernetes client: %w", err)
	}
	orch := orchestrator.NewKubernetes(clientset)

	keyRing, err := capability.LoadOrGenerateKeyRing(cfg.KeyMaterial)
	if err != nil {
		return fmt.Errorf("error loading signing key material: %w", err)
	}
	signer := capability.NewSigner(capability.ActiveKey(keyRing), keyRing...)

	auth, err := controller.NewAuthenticator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error building authenticator: %w", err)
	}

	ctl := controller.New(cfg, st, orch, signer, auth)
	log.WithField("bind_addr", cfg.BindAddr).Info("starting sandbox-controller")
	return ctl.Run(ctx)
}

// buildKubernetesClient prefers in-cluster config (the deployed case) and falls
// back to the local kubeconfig, mirroring the common client-go bootstrapping
// idiom used throughout the orchestrator ecosystem.
func buildKubernetesClient() (kubernetes.Interface, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := clientcmd.NewDefaultClientConfigLoadingRules().GetDefaultFilename()
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, err
		}
	}
	return kubernetes.NewForConfig(restCfg)
}

func initializeConfig() (*config.ControllerConfig, error) {
	cfg := config.DefaultControllerConfig()
	configPath := v.GetString("config-file")
	if err := config.Load(v, configPath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := config.ValidateAll(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
