package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/kintone"
)

var kintoneCmd = &cobra.Command{
	Use:   "kintone",
	Short: "Read and write kintone records",
	Long: `CRUD on one kintone app. The base URL, app id and API token come from the
[kintone] section of config.toml or KINTONE_BASE_URL, KINTONE_APP and
KINTONE_API_TOKEN; --app overrides the app id.`,
}

var kintoneGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch one record",
	Args:  cobra.ExactArgs(1),
	RunE:  runKintoneGet,
}

var kintoneListCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch records matching a query",
	Args:  cobra.NoArgs,
	RunE:  runKintoneList,
}

var kintoneAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a record",
	Args:  cobra.NoArgs,
	RunE:  runKintoneAdd,
}

var kintoneUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runKintoneUpdate,
}

var kintoneDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete records",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKintoneDelete,
}

var (
	kintoneApp      int
	kintoneQuery    string
	kintoneFields   []string
	kintoneAll      bool
	kintoneSet      []string
	kintoneFile     string
	kintoneRevision int
)

func init() {
	kintoneCmd.PersistentFlags().IntVar(&kintoneApp, "app", 0, "App id (default from config)")

	kintoneListCmd.Flags().StringVarP(&kintoneQuery, "query", "q", "", "kintone query, e.g. 'status = \"open\" order by $id desc'")
	kintoneListCmd.Flags().StringSliceVar(&kintoneFields, "fields", nil, "Field codes to return")
	kintoneListCmd.Flags().BoolVar(&kintoneAll, "all", false, "Page through every matching record")

	for _, c := range []*cobra.Command{kintoneAddCmd, kintoneUpdateCmd} {
		c.Flags().StringArrayVar(&kintoneSet, "set", nil, "Field value as code=value (repeatable)")
		c.Flags().StringVarP(&kintoneFile, "file", "f", "", "JSON object of field values")
	}
	kintoneUpdateCmd.Flags().IntVar(&kintoneRevision, "revision", -1, "Expected revision (-1 skips the check)")

	kintoneCmd.AddCommand(kintoneGetCmd, kintoneListCmd, kintoneAddCmd, kintoneUpdateCmd, kintoneDeleteCmd)
	rootCmd.AddCommand(kintoneCmd)
}

func kintoneClient() (*kintone.Client, error) {
	kc := cfg().Kintone
	app := kc.App
	if kintoneApp > 0 {
		app = kintoneApp
	}
	switch {
	case kc.BaseURL == "":
		return nil, errors.ConfigError("kintone.base_url is not set", nil)
	case app <= 0:
		return nil, errors.ConfigError("kintone.app is not set", nil)
	case kc.APIToken == "":
		return nil, errors.ConfigError("kintone API token is not set (KINTONE_API_TOKEN)", nil)
	}
	return kintone.NewClient(kc.BaseURL, app, kc.APIToken), nil
}

func parseRecordID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, errors.ValidationError(fmt.Sprintf("invalid record id %q", s))
	}
	return id, nil
}

// recordInput builds a record from --file and --set; --set wins on
// conflicts.
func recordInput() (kintone.Record, error) {
	values := map[string]any{}
	if kintoneFile != "" {
		data, err := os.ReadFile(kintoneFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", kintoneFile, err)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, errors.ParseError(fmt.Sprintf("%s is not a JSON object", kintoneFile), err)
		}
	}
	set, err := parseKeyValues(kintoneSet)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		values[k] = v
	}
	if len(values) == 0 {
		return nil, errors.ValidationError("no field values given (use --set or --file)")
	}
	return kintone.RecordFromValues(values), nil
}

func runKintoneGet(cmd *cobra.Command, args []string) error {
	id, err := parseRecordID(args[0])
	if err != nil {
		return err
	}
	client, err := kintoneClient()
	if err != nil {
		return err
	}
	rec, err := client.GetRecord(cmd.Context(), id)
	if err != nil {
		return kintone.ToSkillError(err)
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func runKintoneList(cmd *cobra.Command, args []string) error {
	client, err := kintoneClient()
	if err != nil {
		return err
	}

	var records []kintone.Record
	if kintoneAll {
		records, err = client.GetAllRecords(cmd.Context(), kintoneQuery, kintoneFields)
	} else {
		records, err = client.GetRecords(cmd.Context(), kintoneQuery, kintoneFields)
	}
	if err != nil {
		return kintone.ToSkillError(err)
	}
	return printJSON(cmd.OutOrStdout(), records)
}

func runKintoneAdd(cmd *cobra.Command, args []string) error {
	rec, err := recordInput()
	if err != nil {
		return err
	}
	client, err := kintoneClient()
	if err != nil {
		return err
	}
	id, revision, err := client.AddRecord(cmd.Context(), rec)
	if err != nil {
		return kintone.ToSkillError(err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"id": id, "revision": revision})
	}
	logSuccess("Created record %s (revision %s) in app %d", id, revision, client.App())
	return nil
}

func runKintoneUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseRecordID(args[0])
	if err != nil {
		return err
	}
	rec, err := recordInput()
	if err != nil {
		return err
	}
	client, err := kintoneClient()
	if err != nil {
		return err
	}
	revision, err := client.UpdateRecord(cmd.Context(), id, rec, kintoneRevision)
	if err != nil {
		return kintone.ToSkillError(err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]string{"id": args[0], "revision": revision})
	}
	logSuccess("Updated record %d (revision %s)", id, revision)
	return nil
}

func runKintoneDelete(cmd *cobra.Command, args []string) error {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := parseRecordID(a)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	client, err := kintoneClient()
	if err != nil {
		return err
	}
	if err := client.DeleteRecords(cmd.Context(), ids); err != nil {
		return kintone.ToSkillError(err)
	}
	logSuccess("Deleted %d record(s)", len(ids))
	return nil
}
