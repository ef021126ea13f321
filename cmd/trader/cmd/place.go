package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/ibtrader/broker/ibkr"
	"github.com/rustyeddy/ibtrader/config"
	"github.com/rustyeddy/ibtrader/execution"
	"github.com/rustyeddy/ibtrader/internal/logging"
	"github.com/rustyeddy/ibtrader/journal"
	sig "github.com/rustyeddy/ibtrader/signal"
	"github.com/spf13/cobra"
)

var placeCmd = &cobra.Command{
	Use:   "place [-]",
	Short: "Place one market order from a signal",
	Long: `Read a trading signal, place a single market order and append the
outcome to the trade history.

The signal is taken from the first of:
  --signal JSON
  --signal-file path
  standard input, when the argument is "-"
  the SIGNAL_DATA environment variable

The result is printed to stdout as {"success": true, "order": ...} or
{"success": false, "error": "..."}. A failed order is not a command error.

Examples:
  trader place --signal '{"symbol":"AAPL","action":"buy"}'
  echo '{"ticker":"btcusdt","action":"sell","order_size":"0.5"}' | trader place -
  SIGNAL_DATA='{"symbol":"SPY","action":"buy"}' trader place`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlace,
}

var (
	placeSignal     string
	placeSignalFile string
	placeEnvFile    string
)

func init() {
	rootCmd.AddCommand(placeCmd)

	placeCmd.Flags().StringVar(&placeSignal, "signal", "", "signal JSON")
	placeCmd.Flags().StringVar(&placeSignalFile, "signal-file", "", "file holding the signal JSON")
	placeCmd.Flags().StringVar(&placeEnvFile, "env-file", ".env", "dotenv file with IBKR credentials")
}

func runPlace(cmd *cobra.Command, args []string) error {
	useStdin := len(args) == 1 && args[0] == "-"
	if len(args) == 1 && !useStdin {
		return fmt.Errorf("unexpected argument %q (use - to read the signal from stdin)", args[0])
	}

	// .env may set IBKR_BASE_URL as well as credentials.
	config.LoadDotEnv(placeEnvFile)

	in := execution.Input{Credentials: config.CredentialsFromEnv(os.Getenv)}
	payload, payloadErr := readPayload(placeSignal, placeSignalFile, useStdin, cmd.InOrStdin(), os.Getenv)
	in.Payload = payload

	cfg, log, err := setup(cmd)
	if err != nil {
		log = logging.New(logLevel, prettyLogs, cmd.ErrOrStderr())
		placer := &execution.Placer{
			Journal: journal.NewJSONFile(config.Default().Journal.Path, log),
			Log:     log,
		}
		res := placer.Fail(in, &sig.ConfigurationError{Reason: "load config", Err: err})
		return printResult(cmd.OutOrStdout(), res)
	}

	opts := cfg.Broker.Options()
	opts.Logger = &log
	client := ibkr.NewClient(opts)

	j := openJournal(cfg.Journal, log)
	defer j.Close()

	placer := &execution.Placer{
		Session:            client,
		Resolver:           cfg.Resolver.Build(client),
		Journal:            j,
		Log:                log,
		RequireLiveSession: cfg.Broker.RequireSession,
	}

	if payloadErr != nil {
		res := placer.Fail(in, &sig.ConfigurationError{Reason: "no signal data provided", Err: payloadErr})
		return printResult(cmd.OutOrStdout(), res)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return printResult(cmd.OutOrStdout(), placer.Run(ctx, in))
}

// readPayload picks the signal source. Precedence is the --signal flag, the
// --signal-file flag, stdin, then SIGNAL_DATA.
func readPayload(inline, file string, useStdin bool, stdin io.Reader, getenv func(string) string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read signal file: %w", err)
		}
		return data, nil
	case useStdin:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read signal from stdin: %w", err)
		}
		return data, nil
	default:
		return sig.FromEnv(getenv), nil
	}
}

// openJournal always writes the JSON history. The SQLite mirror is added
// when configured; failing to open it only costs the mirror.
func openJournal(cfg config.JournalConfig, log zerolog.Logger) journal.Journal {
	jsonFile := journal.NewJSONFile(cfg.Path, log)
	if cfg.SQLitePath == "" {
		return jsonFile
	}

	db, err := journal.NewSQLite(cfg.SQLitePath, log)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.SQLitePath).Msg("sqlite mirror disabled")
		return jsonFile
	}
	return journal.Multi{jsonFile, db}
}

func printResult(w io.Writer, res execution.Result) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
