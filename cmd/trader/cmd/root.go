package cmd

import (
	"github.com/rs/zerolog"
	"github.com/rustyeddy/ibtrader/config"
	"github.com/rustyeddy/ibtrader/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Place Interactive Brokers market orders from webhook signals",
	Long: `Trader turns a JSON trading signal into a single market order on an
Interactive Brokers Client Portal gateway and keeps a JSON trade history.

A signal looks like:
  {"symbol": "AAPL", "action": "buy", "order_size": "1"}

Credentials come from IBKR_USERNAME, IBKR_PASSWORD and IBKR_ACCOUNT_ID,
optionally loaded from a .env file.`,
	SilenceUsage: true,
}

var (
	cfgFile    string
	logLevel   string
	prettyLogs bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON; defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "human-readable logs on stderr")
}

// setup loads the configuration and builds the stderr logger.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log := logging.New(level, cfg.Log.Pretty || prettyLogs, cmd.ErrOrStderr())
	return cfg, log, nil
}
