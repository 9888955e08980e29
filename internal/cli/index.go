package cli

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/fincommerce/internal/catalog"
	"github.com/nikhilbhutani/fincommerce/internal/queue"
)

var (
	recreate    bool
	uploadAsync bool
	batchSize   int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create the product collection and its payload indexes",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a JSON product catalog",
	Long: `Upload reads a JSON array of products, embeds each one and writes it to
the product collection in batches.

With --async the file path is queued for the worker instead, so the path
must be readable by the worker process.

Examples:
  shopctl upload products.json
  shopctl upload products.json --recreate
  shopctl upload /shared/products.json --async`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(uploadCmd)

	indexCmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the collection")
	uploadCmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the collection before uploading")
	uploadCmd.Flags().BoolVar(&uploadAsync, "async", false, "queue the upload for the worker")
	uploadCmd.Flags().IntVarP(&batchSize, "batch", "b", catalog.DefaultBatchSize, "products per upsert batch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	store, closeFn, err := productStore()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	if err := store.EnsureCollection(ctx, recreate); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := store.EnsurePayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	fmt.Printf("Collection %q is ready\n", cfg.Qdrant.ProductsCollection)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]

	if uploadAsync {
		client := queue.NewClient(cfg.Redis)
		defer client.Close()

		id, err := client.EnqueueCatalogIngest(cmd.Context(), queue.CatalogIngestPayload{Path: path, Recreate: recreate})
		if err != nil {
			return fmt.Errorf("failed to queue upload: %w", err)
		}
		fmt.Printf("Queued upload of %s (task %s)\n", path, id)
		return nil
	}

	products, err := catalog.Load(path)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Println("No products found")
		return nil
	}

	store, closeFn, err := productStore()
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Printf("Uploading %d products from %s...\n", len(products), path)

	bar := newProgressBar(len(products), "[cyan]Uploading[reset]")
	var mu sync.Mutex
	last := 0
	progress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		_ = bar.Add(done - last)
		last = done
	}

	done, err := catalog.NewIngester(store, batchSize).Ingest(cmd.Context(), products, catalog.IngestOptions{
		Recreate: recreate,
		Progress: progress,
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("upload stopped after %d products: %w", done, err)
	}

	fmt.Printf("Uploaded %d products to %q\n", done, cfg.Qdrant.ProductsCollection)
	return nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}
