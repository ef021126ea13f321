package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/ibtrader/journal"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the trade history",
	Long: `Read trade records written by "trader place".

Subcommands:
  list    - List records from the JSON history file
  show    - Show one record by id
  export  - Export the history as CSV
  day     - List records from the SQLite mirror for one day

Examples:
  trader history list --last 10 --status failed
  trader history show 01JPB8XH2MB5CD
  trader history export --csv trades.csv
  trader history day 2025-03-14 --db trades.sqlite`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trade records",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one trade record as an org-mode entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the trade history as CSV",
	Args:  cobra.NoArgs,
	RunE:  runHistoryExport,
}

var historyDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List records from the SQLite mirror for one local day",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDay,
}

var (
	historyFile   string
	historyDB     string
	historyLast   int
	historyStatus string
	historyOrg    bool
	historyCSV    string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyDayCmd)

	historyCmd.PersistentFlags().StringVar(&historyFile, "file", "", "trade history JSON file (default from config)")
	historyCmd.PersistentFlags().StringVar(&historyDB, "db", "", "SQLite mirror (default from config)")

	historyListCmd.Flags().IntVar(&historyLast, "last", 0, "only the last N records")
	historyListCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (success or failed)")
	historyListCmd.Flags().BoolVar(&historyOrg, "org", false, "print org-mode entries instead of JSON")

	historyExportCmd.Flags().StringVar(&historyCSV, "csv", "-", "CSV output path, - for stdout")
}

// historySources resolves the history file and SQLite path from flags,
// falling back to the config.
func historySources(cmd *cobra.Command) (string, string, zerolog.Logger, error) {
	cfg, log, err := setup(cmd)
	if err != nil {
		return "", "", log, err
	}
	file, db := historyFile, historyDB
	if file == "" {
		file = cfg.Journal.Path
	}
	if db == "" {
		db = cfg.Journal.SQLitePath
	}
	return file, db, log, nil
}

func loadHistory(cmd *cobra.Command) ([]journal.TradeRecord, error) {
	file, _, log, err := historySources(cmd)
	if err != nil {
		return nil, err
	}
	recs, err := journal.NewJSONFile(file, log).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return recs, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	switch journal.Status(historyStatus) {
	case "", journal.StatusSuccess, journal.StatusFailed:
	default:
		return fmt.Errorf("--status must be %q or %q", journal.StatusSuccess, journal.StatusFailed)
	}

	recs, err := loadHistory(cmd)
	if err != nil {
		return err
	}
	recs = filterRecords(recs, journal.Status(historyStatus), historyLast)

	if historyOrg {
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRecordsOrg(recs))
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), recs)
}

// filterRecords keeps records with the given status (all when empty), then
// the last n of those (all when n <= 0).
func filterRecords(recs []journal.TradeRecord, status journal.Status, n int) []journal.TradeRecord {
	out := make([]journal.TradeRecord, 0, len(recs))
	for _, r := range recs {
		if status == "" || r.Status() == status {
			out = append(out, r)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	file, db, log, err := historySources(cmd)
	if err != nil {
		return err
	}
	recordID := args[0]

	recs, err := journal.NewJSONFile(file, log).ReadAll()
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	for _, r := range recs {
		if r.ID == recordID {
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRecordOrg(r))
			return nil
		}
	}

	if db == "" {
		return fmt.Errorf("trade record %q not found", recordID)
	}
	j, err := journal.NewSQLite(db, log)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.Get(recordID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRecordOrg(rec))
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	recs, err := loadHistory(cmd)
	if err != nil {
		return err
	}

	if historyCSV == "" || historyCSV == "-" {
		return journal.WriteCSV(cmd.OutOrStdout(), recs)
	}

	f, err := os.Create(historyCSV)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := journal.WriteCSV(f, recs); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records to %s\n", len(recs), historyCSV)
	return nil
}

func runHistoryDay(cmd *cobra.Command, args []string) error {
	_, db, log, err := historySources(cmd)
	if err != nil {
		return err
	}
	if db == "" {
		return fmt.Errorf("no SQLite mirror configured (set journal.sqlite_path or --db)")
	}

	start, end, err := dayBounds(time.Local, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	j, err := journal.NewSQLite(db, log)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListBetween(start, end)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRecordsOrg(recs))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
