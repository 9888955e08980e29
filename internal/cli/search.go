package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
)

var (
	searchLimit    int
	searchMaxPrice float64
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the product catalog",
	Long: `Search runs a hybrid query against the product collection.

Examples:
  shopctl search "wireless earbuds"
  shopctl search "laptop bag" --max-price 40 --limit 5 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", 10, "number of results")
	searchCmd.Flags().Float64VarP(&searchMaxPrice, "max-price", "p", 0, "only products at or below this discounted price")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	store, closeFn, err := productStore()
	if err != nil {
		return err
	}
	defer closeFn()

	products, err := store.Search(cmd.Context(), vectorstore.SearchRequest{
		Query:  strings.Join(args, " "),
		Filter: vectorstore.Filter{MaxPrice: searchMaxPrice},
		Limit:  searchLimit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(products)
	}
	printProducts(os.Stdout, products)
	return nil
}

func printProducts(w io.Writer, products []models.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products found")
		return
	}
	for i, p := range products {
		fmt.Fprintf(w, "%2d. %s  $%.2f", i+1, p.Title, p.DiscountedPrice)
		if p.ActualPrice > p.DiscountedPrice {
			fmt.Fprintf(w, " (was $%.2f)", p.ActualPrice)
		}
		fmt.Fprintf(w, "  [%s, score %.3f]\n", p.ID, p.Score)
	}
}
