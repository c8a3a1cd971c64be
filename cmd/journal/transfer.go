package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"substance-journal/internal/transfer"
)

func exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the whole journal to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			sum, err := a.transfer.ExportFile(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			a.log.Info("journal exported", zap.String("file", args[0]))
			return printJSON(cmd, sum)
		},
	}
}

func importCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the whole journal with an exported JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("import deletes the current journal; pass --yes to confirm")
			}
			a := fromContext(cmd.Context())
			sum, err := a.transfer.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd, sum)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm replacing the current journal")
	return cmd
}

func importSubstancesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-substances FILE",
		Short: "Merge custom substances from an export or a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			f, err := os.Open(args[0])
			if err != nil {
				return describe(transfer.Classify(err))
			}
			defer f.Close()
			created, updated, err := a.transfer.ImportCustomSubstances(cmd.Context(), f)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d custom substances\n", created, updated)
			return nil
		},
	}
}

// describe turns a transfer failure into its user message plus detail.
func describe(err error) error {
	var te *transfer.Error
	if errors.As(err, &te) {
		return fmt.Errorf("%s\n%s", te.Message, te.Detail)
	}
	return err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
