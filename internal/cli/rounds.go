package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/nayana/internal/store"
)

var roundsCmd = &cobra.Command{
	Use:   "rounds",
	Short: "List played rounds",
	Args:  cobra.NoArgs,
	RunE:  runRoundsList,
}

var roundsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show win, draw and abandon counts",
	Args:  cobra.NoArgs,
	RunE:  runRoundsStats,
}

var roundsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a round from the history",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoundsDelete,
}

func init() {
	roundsCmd.Flags().Int("limit", 20, "Maximum number of rounds to list (0 = all)")
	roundsCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	roundsCmd.AddCommand(roundsStatsCmd)
	roundsCmd.AddCommand(roundsDeleteCmd)
	rootCmd.AddCommand(roundsCmd)
}

// openStore opens the history database, creating the data directory when needed.
func openStore() (*store.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func runRoundsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rounds, err := st.Rounds().List(mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("list rounds: %w", err)
	}

	out := cmd.OutOrStdout()
	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rounds)
	}

	if len(rounds) == 0 {
		fmt.Fprintln(out, "No rounds played yet")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFINISHED\tMODE\tDIFFICULTY\tOUTCOME\tWINNER\tMOVES\tBOARD")
	for _, rd := range rounds {
		winner := rd.Winner
		if winner == "" {
			winner = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			rd.ID, rd.FinishedAt.Local().Format("2006-01-02 15:04"), rd.Mode, rd.Difficulty,
			rd.Outcome, winner, rd.Moves, rd.Board)
	}
	return w.Flush()
}

func runRoundsStats(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Rounds().Stats()
	if err != nil {
		return fmt.Errorf("round stats: %w", err)
	}

	out := cmd.OutOrStdout()
	if mustGetBool(cmd, "json") {
		return json.NewEncoder(out).Encode(stats)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Rounds:\t%d\n", stats.Total)
	fmt.Fprintf(w, "X wins:\t%d\n", stats.XWins)
	fmt.Fprintf(w, "O wins:\t%d\n", stats.OWins)
	fmt.Fprintf(w, "Draws:\t%d\n", stats.Draws)
	fmt.Fprintf(w, "Abandoned:\t%d\n", stats.Abandoned)
	return w.Flush()
}

func runRoundsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Rounds().Delete(args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("round %s not found", args[0])
		}
		return fmt.Errorf("delete round: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted round %s\n", args[0])
	return nil
}
