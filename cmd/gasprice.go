package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/gasprice"
)

var gaspriceCmd = &cobra.Command{
	Use:   "gasprice",
	Short: "Summarise fuel prices from a station price table",
	Long: `Fetches a station price page and reports min, average and max price per
fuel type. --url and --region default to the [gasprice] section of
config.toml. Pages without a region column are summarised as a whole.`,
	Args: cobra.NoArgs,
	RunE: runGasPrice,
}

var (
	gaspriceURL     string
	gaspriceRegion  string
	gaspriceOut     string
	gaspriceBrowser bool
)

func init() {
	gaspriceCmd.Flags().StringVar(&gaspriceURL, "url", "", "Price table URL")
	gaspriceCmd.Flags().StringVar(&gaspriceRegion, "region", "", "Region or prefecture to filter on")
	gaspriceCmd.Flags().StringVarP(&gaspriceOut, "out", "o", "", "Write the summary JSON here")
	gaspriceCmd.Flags().BoolVar(&gaspriceBrowser, "browser", false, "Render with a headless browser")
	rootCmd.AddCommand(gaspriceCmd)
}

func runGasPrice(cmd *cobra.Command, args []string) error {
	url := gaspriceURL
	if url == "" {
		url = cfg().GasPrice.URL
	}
	if url == "" {
		return errors.ConfigError("no price page: pass --url or set gasprice.url", nil)
	}
	region := gaspriceRegion
	if region == "" {
		region = cfg().GasPrice.Region
	}

	fetcher, closeFetcher := newFetcher(gaspriceBrowser)
	defer closeFetcher()

	summary, err := gasprice.Lookup(cmd.Context(), fetcher, url, region)
	if err != nil {
		return errors.RemoteError("gasprice", err)
	}

	if gaspriceOut != "" || jsonOutput {
		if err := writeResult(cmd.OutOrStdout(), gaspriceOut, summary); err != nil {
			return err
		}
		if gaspriceOut == "" {
			return nil
		}
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "FUEL\tSTATIONS\tMIN\tAVG\tMAX\tCHEAPEST")
	fmt.Fprintln(w, "----\t--------\t---\t---\t---\t--------")
	for _, f := range summary.Fuels {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			f.Fuel, f.Stations, f.Min.StringFixed(1), f.Avg.StringFixed(1), f.Max.StringFixed(1), f.MinStation)
	}
	return w.Flush()
}
