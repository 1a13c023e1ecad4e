package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/therealityreport/trr-surveys/internal/services"
)

func newScheduleRunsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule-runs",
		Short: "Create this week's run for every survey with autoCreateRuns",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := services.NewRunScheduler(store).EnsureWeeklyRuns(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No surveys opt in to weekly runs")
				return nil
			}
			failed := 0
			for _, r := range results {
				switch {
				case r.Error != "":
					failed++
					fmt.Fprintf(out, "%s %s: error: %s\n", r.SurveySlug, r.RunKey, r.Error)
				case r.Created:
					fmt.Fprintf(out, "%s %s: created\n", r.SurveySlug, r.RunKey)
				default:
					fmt.Fprintf(out, "%s %s: exists\n", r.SurveySlug, r.RunKey)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d surveys failed", failed)
			}
			return nil
		},
	}
}
