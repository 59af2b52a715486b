package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/teabrew/app"
	"github.com/kilianp07/teabrew/core/dispatch"
)

var (
	brewMachine string
	brewPortion float64
	brewUser    int64
)

var brewCmd = &cobra.Command{
	Use:   "brew <recipe-id>",
	Short: "Validate a recipe against a machine and enqueue it",
	Args:  cobra.ExactArgs(1),
	RunE:  brewRecipe,
}

// errRejected makes the command exit non-zero when validation fails.
var errRejected = errors.New("brew rejected")

func init() {
	brewCmd.Flags().StringVar(&brewMachine, "machine", "", "machine ID")
	brewCmd.Flags().Float64Var(&brewPortion, "portion", 0, "portion override, 0 uses the recipe portion")
	brewCmd.Flags().Int64Var(&brewUser, "user", 0, "act as this user, private recipes of other authors are refused; 0 skips the check")
	_ = brewCmd.MarkFlagRequired("machine")
	rootCmd.AddCommand(brewCmd)
}

func brewRecipe(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("recipe id %q: %w", args[0], err)
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

	req := dispatch.Request{RecipeID: id, MachineID: brewMachine, UserID: brewUser}
	if brewPortion > 0 {
		req.Portion = &brewPortion
	}
	out, err := svc.Manager.Dispatch(cmd.Context(), req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if !out.Accepted() {
		return errRejected
	}
	return nil
}
