package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"marketscout/internal/engine"
	"marketscout/internal/models"
)

var (
	jitterSeed    int64
	trendingLimit int
)

var scoreCmd = &cobra.Command{
	Use:   "score PRODUCT_ID...",
	Short: "Calculate and record trend scores",
	Long: `Calculate a trend score for each product and store it as a new trend point.

Examples:
  scoutctl score 1 2 3
  scoutctl score 7 --seed 42 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseProductIDs(args)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		var opts []engine.Option
		if jitterSeed != 0 {
			opts = append(opts, engine.WithJitter(engine.NewRandomJitter(jitterSeed)))
		}
		e := engine.New(store, opts...)

		scores := make([]models.TrendScore, 0, len(ids))
		for _, id := range ids {
			score, err := e.RecordTrendScore(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("product %d: %w", id, err)
			}
			scores = append(scores, *score)
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), scores)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PRODUCT\tSCORE\tCALCULATED AT")
		for _, s := range scores {
			fmt.Fprintf(w, "%d\t%.1f\t%s\n", s.ProductID, s.Score, s.CalculatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "List the top trending products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		trending, err := engine.New(store).GetTrendingProducts(cmd.Context(), trendingLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), trending)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tPRODUCT\tNAME\tSCORE\tLAST UPDATED")
		for i, t := range trending {
			fmt.Fprintf(w, "%d\t%d\t%s\t%.1f\t%s\n", i+1, t.Product.ID, t.Product.Name, t.CurrentScore, t.LastUpdated.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd, trendingCmd)

	scoreCmd.Flags().Int64Var(&jitterSeed, "seed", 0, "Seed for the score jitter (0 = time based)")
	trendingCmd.Flags().IntVar(&trendingLimit, "limit", engine.DefaultTrendingLimit, "Number of products to list")
}

func parseProductIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid product id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
