package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"substance-journal/internal/service"
)

func suggestCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "suggest [SEARCH]",
		Short: "Show quick-log suggestions from the ingestion history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			search := ""
			if len(args) == 1 {
				search = args[0]
			}
			list, err := a.suggestions.Suggestions(cmd.Context(), search)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, list)
			}
			for _, sg := range list {
				fmt.Fprintln(cmd.OutOrStdout(), suggestionLine(sg))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func suggestionLine(sg service.Suggestion) string {
	var b strings.Builder
	switch sg.Kind {
	case service.SuggestionRecipe:
		b.WriteString(sg.Recipe.Name)
		b.WriteString(" [recipe]")
	default:
		b.WriteString(sg.SubstanceName)
		if sg.CustomUnit != nil {
			b.WriteString(" [" + sg.CustomUnit.Name + "]")
		}
	}
	b.WriteString(" (" + strings.ToLower(string(sg.Route)) + ")")

	doses := make([]string, 0, len(sg.Doses))
	for _, d := range sg.Doses {
		if d.Dose == nil {
			doses = append(doses, "unknown")
			continue
		}
		s := strconv.FormatFloat(*d.Dose, 'f', -1, 64)
		if d.IsEstimate {
			s = "~" + s
		}
		if d.StandardDeviation != nil {
			s += "±" + strconv.FormatFloat(*d.StandardDeviation, 'f', -1, 64)
		}
		doses = append(doses, s+" "+d.Units)
	}
	if len(doses) > 0 {
		b.WriteString(": " + strings.Join(doses, ", "))
	}
	return b.String()
}
