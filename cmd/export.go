package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/csvio"
	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/parse"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Convert skill artifacts between formats",
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv <input>",
	Short: "Write JSON, JSONL or CSV records as a normalized CSV",
	Long: `Reads records from a .json array, .jsonl or .csv file, normalizes the column
names (width folding, aliases such as 金額 → amount) and writes a CSV.

Without --columns every column found in the input is written, in input order
for CSV and sorted for JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runExportCSV,
}

var (
	exportOut     string
	exportColumns []string
	exportBOM     bool
)

func init() {
	exportCSVCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output CSV file (default stdout)")
	exportCSVCmd.Flags().StringSliceVar(&exportColumns, "columns", nil, "Columns to write, in order")
	exportCSVCmd.Flags().BoolVar(&exportBOM, "bom", false, "Start the file with a UTF-8 BOM")

	exportCmd.AddCommand(exportCSVCmd)
	rootCmd.AddCommand(exportCmd)
}

func runExportCSV(cmd *cobra.Command, args []string) error {
	rows, headers, err := csvio.ReadRecords(args[0])
	if err != nil {
		return errors.ParseError("failed to read records", err)
	}

	columns := headers
	if len(exportColumns) > 0 {
		columns = make([]string, 0, len(exportColumns))
		for _, c := range exportColumns {
			if c = strings.TrimSpace(c); c != "" {
				columns = append(columns, parse.NormalizeHeader(c))
			}
		}
	}
	if len(columns) == 0 {
		return errors.ValidationError(fmt.Sprintf("%s has no columns", args[0]))
	}

	if exportOut == "" {
		return csvio.Write(cmd.OutOrStdout(), columns, rows, exportBOM)
	}
	if err := csvio.WriteFile(exportOut, columns, rows, exportBOM); err != nil {
		return err
	}
	logSuccess("Wrote %d rows to %s", len(rows), exportOut)
	return nil
}
