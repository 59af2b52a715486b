package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kilianp07/teabrew/app"
)

var provisionOwner int64

var provisionCmd = &cobra.Command{
	Use:   "provision <machine-id>",
	Short: "Create a machine with four empty containers",
	Args:  cobra.ExactArgs(1),
	RunE:  provision,
}

func init() {
	provisionCmd.Flags().Int64Var(&provisionOwner, "owner", 0, "user ID owning the machine")
	rootCmd.AddCommand(provisionCmd)
}

func provision(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	m, err := svc.Machines.Provision(cmd.Context(), args[0], provisionOwner)
	if err != nil {
		return err
	}
	layout, err := svc.Machines.Layout(cmd.Context(), m.ID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"machine": m, "containers": layout})
}
