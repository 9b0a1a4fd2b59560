package cli

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coach/internal/core"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		meetID  string
		latest  bool
		times   bool
		dataset string
	)

	cmd := &cobra.Command{
		Use:   "history --meet ID",
		Short: "Show the import ledger for a meet",
		Long: `Show the import ledger for a meet.

With --times, list the swimmer times loaded by the latest import of
--dataset (entries or results), in the meet's course.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var ds core.Dataset
			if times {
				var err error
				if ds, err = core.ParseDataset(dataset); err != nil {
					return err
				}
			}

			st, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			svc := a.service(st)

			if times {
				rows, err := svc.MeetTimes(ctx, meetID, ds)
				if err != nil {
					return err
				}
				return writeTimes(cmd.OutOrStdout(), meetID, ds, rows, a.format)
			}

			var rows []core.ImportHistory
			if latest {
				rows, err = svc.LatestImports(ctx, meetID)
			} else {
				rows, err = svc.History(ctx, meetID)
			}
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), meetID, rows, a.format)
		},
	}

	cmd.Flags().StringVar(&meetID, "meet", "", "Meet id (required)")
	cmd.Flags().BoolVar(&latest, "latest", false, "Only the newest import per dataset")
	cmd.Flags().BoolVar(&times, "times", false, "List the times loaded by the latest import")
	cmd.Flags().StringVar(&dataset, "dataset", "entries", "Dataset for --times: entries or results")
	cmd.MarkFlagRequired("meet")
	cmd.MarkFlagsMutuallyExclusive("latest", "times")
	return cmd
}
