package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/fincommerce/internal/app"
	"github.com/nikhilbhutani/fincommerce/internal/queue"
)

var (
	pruneBefore string
	pruneAsync  bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete behavior events older than the retention window",
	Long: `Prune removes behavior events recorded before a cutoff. The cutoff
defaults to now minus BEHAVIOR_RETENTION.

Examples:
  shopctl prune
  shopctl prune --before 2026-01-01T00:00:00Z
  shopctl prune --async`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().StringVar(&pruneBefore, "before", "", "RFC3339 cutoff (default now minus retention)")
	pruneCmd.Flags().BoolVar(&pruneAsync, "async", false, "queue the prune for the worker")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cutoff, err := pruneCutoff(pruneBefore, time.Now(), cfg.Behavior.Retention)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if pruneAsync {
		client := queue.NewClient(cfg.Redis)
		defer client.Close()

		payload := queue.BehaviorPrunePayload{}
		if pruneBefore != "" {
			payload.Before = cutoff
		}
		id, err := client.EnqueueBehaviorPrune(ctx, payload)
		if err != nil {
			return fmt.Errorf("failed to queue prune: %w", err)
		}
		fmt.Printf("Queued prune (task %s)\n", id)
		return nil
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Events.PruneBefore(ctx, cutoff); err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	fmt.Printf("Pruned %s events recorded before %s\n", cfg.Behavior.Store, cutoff.Format(time.RFC3339))
	return nil
}

// pruneCutoff parses an explicit RFC3339 cutoff or derives one from the
// retention window.
func pruneCutoff(before string, now time.Time, retention time.Duration) (time.Time, error) {
	if before == "" {
		if retention <= 0 {
			return time.Time{}, fmt.Errorf("retention must be positive, got %s", retention)
		}
		return now.Add(-retention).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, before)
	if err != nil {
		return time.Time{}, fmt.Errorf("--before must be RFC3339: %w", err)
	}
	return t.UTC(), nil
}
