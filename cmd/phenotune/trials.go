package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"phenotune/internal/errors"
	"phenotune/internal/store"
)

func newTrialsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trials RUN_ID",
		Short: "List the trials persisted for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cmd.Context(), root.cfg.Store)
			if err != nil {
				return errors.WrapError(err, errors.ErrCodeStore, "failed to open trial store")
			}
			if st == nil {
				return errors.Configuration("store.backend is none, nothing to list")
			}
			defer st.Close()

			trials, err := st.LoadTrials(cmd.Context(), args[0])
			if err != nil {
				return errors.WrapError(err, errors.ErrCodeStore, "failed to load trials")
			}
			if len(trials) == 0 {
				return errors.NewAppErrorWithDetails(errors.ErrCodeNotFound, "no trials stored", args[0], nil)
			}

			out := cmd.OutOrStdout()
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Trial", "Status", "Source", "Hyperparameters", "Val loss", "Epochs", "Error"})
			for _, t := range trials {
				table.Append([]string{
					t.TrialID,
					t.Status,
					t.Source,
					t.Hyperparameters.String(),
					formatFloat(float64(t.ValLoss)),
					strconv.Itoa(t.Epochs),
					t.Error,
				})
			}
			table.Render()

			if best, ok := store.Best(trials); ok {
				fmt.Fprintf(out, "Best: %s val_loss=%.5f %s\n", best.TrialID, float64(best.ValLoss), best.Hyperparameters.String())
			}
			return nil
		},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}
