// Package cli implements shopctl, the operator tool for the catalog and the
// behavior store.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/fincommerce/internal/config"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "shopctl",
	Short: "Operate the product catalog and behavior store",
	Long: `shopctl manages the product collection behind the shopping assistant.

Example usage:
  shopctl index                          # Create the collection and payload indexes
  shopctl upload products.json           # Embed and upload a catalog file
  shopctl search "running shoes" -p 80   # Query the catalog
  shopctl prune --async                  # Queue a behavior retention prune`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return cfg.Validate()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// productStore opens the product collection named in the config.
func productStore() (*vectorstore.QdrantProductStore, func() error, error) {
	client, err := vectorstore.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	return vectorstore.NewQdrantProductStore(client, cfg.Qdrant), client.Close, nil
}
