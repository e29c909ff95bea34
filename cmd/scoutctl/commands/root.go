package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"marketscout/internal/config"
	"marketscout/internal/database"
	"marketscout/internal/logger"
)

var (
	// Global flags
	dbURL      string
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "scoutctl",
	Short: "MarketScout operations CLI",
	Long: `scoutctl runs maintenance tasks against the MarketScout database.

Commands:
  migrate   - Create the schema if it does not exist
  ping      - Check database connectivity
  score     - Calculate and record trend scores
  trending  - List the top trending products
  export    - Export a user's watchlist or trend history as CSV`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		return logger.InitLogger(level, verbose)
	},
}

// Execute runs the root command. Ctrl-C cancels the running command's context.
func Execute() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func openStore(ctx context.Context) (*database.Store, error) {
	url := dbURL
	if url == "" {
		db, err := config.LoadDatabase()
		if err != nil {
			return nil, err
		}
		url = db.URL
	}

	store, err := database.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
