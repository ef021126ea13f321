package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/ibtrader/signal"
)

const (
	EnvUsername  = "IBKR_USERNAME"
	EnvPassword  = "IBKR_PASSWORD"
	EnvAccountID = "IBKR_ACCOUNT_ID"
)

// Credentials log in to the gateway and pick the trading account.
type Credentials struct {
	Username  string
	Password  string
	AccountID string
}

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// CredentialsFromEnv reads IBKR_USERNAME, IBKR_PASSWORD and IBKR_ACCOUNT_ID.
func CredentialsFromEnv(getenv func(string) string) Credentials {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Credentials{
		Username:  strings.TrimSpace(getenv(EnvUsername)),
		Password:  getenv(EnvPassword),
		AccountID: strings.TrimSpace(getenv(EnvAccountID)),
	}
}

// Validate requires a username and password. The account id may be empty;
// the gateway then answers the account call itself.
func (c Credentials) Validate() error {
	if c.Username == "" || c.Password == "" {
		return &signal.ConfigurationError{Reason: "IBKR credentials not provided"}
	}
	return nil
}
