package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketscout/internal/export"
)

var (
	exportUser   string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export watchlist|trends",
	Short: "Export a user's watchlist or trend history as CSV",
	Long: `Write the same CSV the API serves from /export/{kind}.

Examples:
  scoutctl export watchlist --user alice
  scoutctl export trends --user alice -o trends.csv`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(export.KindWatchlist), string(export.KindTrends)},
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportUser == "" {
			return fmt.Errorf("--user flag is required")
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUserByUsername(cmd.Context(), exportUser)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %q not found", exportUser)
		}

		data, err := export.New(store).Export(cmd.Context(), user.ID, export.Kind(args[0]))
		if err != nil {
			return err
		}

		if exportOutput == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), exportOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportUser, "user", "u", "", "Username whose data to export")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (defaults to stdout)")
}
