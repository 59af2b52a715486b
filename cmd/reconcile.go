package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/teabrew/app"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <recipe-id>...",
	Short: "Recompute recipe scores from the stored votes",
	Long: "Recomputes the mean score and vote count of each recipe from its individual votes " +
		"and overwrites the stored tally. Use it after a manual database repair.",
	Args: cobra.MinimumNArgs(1),
	RunE: reconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

type reconciled struct {
	RecipeID int64   `json:"recipe_id"`
	Score    float64 `json:"score"`
	Votes    int     `json:"votes"`
}

func reconcile(cmd *cobra.Command, args []string) error {
	ids := make([]int64, len(args))
	for i, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("recipe id %q: %w", a, err)
		}
		ids[i] = id
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := make([]reconciled, 0, len(ids))
	for _, id := range ids {
		t, err := svc.Votes.Reconcile(cmd.Context(), id)
		if err != nil {
			return err
		}
		out = append(out, reconciled{RecipeID: id, Score: t.Score, Votes: t.Votes})
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
