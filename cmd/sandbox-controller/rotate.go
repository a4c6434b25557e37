package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arakoodev/k8s-cli-agents/internal/capability"
	"github.com/arakoodev/k8s-cli-agents/pkg/logger"
)

// newRotateKeyCmd implements spec section 4.2's key rotation operation as an
// operator-facing subcommand, grounded on teacher's cmd/determined-master
// populate_metrics.go (a one-shot maintenance subcommand alongside the server's
// own root command, sharing the same config loading path). It never starts the
// HTTP server: it generates a fresh Ed25519 key pair, appends it to the key set
// already at the configured keyMaterial location, and persists both -- old keys
// are kept so tokens minted under a prior kid keep verifying until they expire.
func newRotateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key",
		Short: "generate a new signing key and add it to the active key set",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runRotateKey(); err != nil {
				log.Errorf("%+v", err)
				os.Exit(1)
			}
		},
	}
}

func runRotateKey() error {
	cfg, err := initializeConfig()
	if err != nil {
		return err
	}
	logger.SetLogrus(cfg.Log)

	fresh, ring, err := capability.RotateKey(cfg.KeyMaterial)
	if err != nil {
		return fmt.Errorf("error rotating signing key: %w", err)
	}

	log.WithField("kid", fresh.KID).
		Infof("rotated signing key at %s; %d key(s) now published", cfg.KeyMaterial, len(ring))
	return nil
}
