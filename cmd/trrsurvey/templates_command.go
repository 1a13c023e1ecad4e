package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/therealityreport/trr-surveys/internal/services"
)

func newTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "templates [question_type]",
		Short:       "List the question template catalog",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			templates := services.Templates()
			if len(args) == 1 {
				t, err := services.ParseQuestionType(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				templates = services.TemplatesFor(t)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTemplates(templates))
			return nil
		},
	}
}

func renderTemplates(templates []services.Template) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"UI Variant", "Type", "Label", "Seed Options", "Rows"})
	for _, t := range templates {
		keys := make([]string, 0, len(t.SeedOptions))
		for _, s := range t.SeedOptions {
			keys = append(keys, s.OptionKey)
		}
		rows := ""
		if t.UsesRows {
			rows = "yes"
		}
		tw.AppendRow(table.Row{string(t.UIVariant), string(t.QuestionType), t.Label, strings.Join(keys, ", "), rows})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", strconv.Itoa(len(templates))})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
