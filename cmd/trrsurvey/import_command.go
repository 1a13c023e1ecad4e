package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/therealityreport/trr-surveys/internal/importer"
	"github.com/therealityreport/trr-surveys/internal/services"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>...",
		Short: "Create surveys from YAML definitions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			im := importer.New(services.NewSurveyService(store, nil), ctx.log())
			out := cmd.OutOrStdout()
			for _, path := range args {
				def, err := importer.ParseFile(path)
				if err != nil {
					return err
				}
				res, err := im.Import(cmd.Context(), def)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				if res.Skipped {
					fmt.Fprintf(out, "%s: survey %q already exists, skipped\n", path, res.Slug)
					continue
				}
				fmt.Fprintf(out, "%s: created %q with %d questions and %d runs\n", path, res.Slug, res.Questions, res.Runs)
			}
			return nil
		},
	}
}
