package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/ibtrader/config"
	"github.com/rustyeddy/ibtrader/journal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with fresh flag state.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cfgFile, logLevel, prettyLogs = "", "", false
	placeSignal, placeSignalFile, placeEnvFile = "", "", filepath.Join(t.TempDir(), "none.env")
	historyFile, historyDB, historyLast, historyStatus, historyOrg, historyCSV = "", "", 0, "", false, "-"
	configInitOutput, configValidatePath = "trader.yaml", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReadPayloadPrecedence(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "signal.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"from":"file"}`), 0o644))
	stdin := func() io.Reader { return strings.NewReader(`{"from":"stdin"}`) }
	getenv := func(k string) string {
		if k == "SIGNAL_DATA" {
			return `{"from":"env"}`
		}
		return ""
	}

	tests := []struct {
		name     string
		inline   string
		file     string
		useStdin bool
		want     string
	}{
		{"flag wins", `{"from":"flag"}`, file, true, `{"from":"flag"}`},
		{"file before stdin", "", file, true, `{"from":"file"}`},
		{"stdin before env", "", "", true, `{"from":"stdin"}`},
		{"env last", "", "", false, `{"from":"env"}`},
	}
	for _, tt := range tests {
		got, err := readPayload(tt.inline, tt.file, tt.useStdin, stdin(), getenv)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, string(got), tt.name)
	}

	_, err := readPayload("", filepath.Join(t.TempDir(), "missing.json"), false, stdin(), getenv)
	assert.ErrorContains(t, err, "read signal file")
}

func TestFilterRecords(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	recs := []journal.TradeRecord{
		journal.Succeeded(at, "AAPL", "buy", decimal.NewFromInt(1), "1"),
		journal.Failed(at, "MSFT", "sell", decimal.NullDecimal{}, "boom"),
		journal.Succeeded(at, "SPY", "buy", decimal.NewFromInt(2), "2"),
		journal.Failed(at, "QQQ", "buy", decimal.NullDecimal{}, "bang"),
	}

	assert.Len(t, filterRecords(recs, "", 0), 4)

	last := filterRecords(recs, "", 2)
	require.Len(t, last, 2)
	assert.Equal(t, "SPY", last[0].Symbol)
	assert.Equal(t, "QQQ", last[1].Symbol)

	failed := filterRecords(recs, journal.StatusFailed, 1)
	require.Len(t, failed, 1)
	assert.Equal(t, "QQQ", failed[0].Symbol)
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	start, end, err := dayBounds(time.UTC, "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds(time.UTC, "14/03/2025")
	assert.Error(t, err)
}

func TestPlaceCommand(t *testing.T) {
	var (
		mu     sync.Mutex
		orders []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			io.WriteString(w, `{"access_token":"tok"}`)
		case "/order":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			orders = append(orders, body)
			mu.Unlock()
			io.WriteString(w, `{"id":"555"}`)
		default:
			io.WriteString(w, `{}`)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Broker.BaseURL = srv.URL
	cfg.Journal.Path = filepath.Join(dir, "trade_history.json")
	cfg.Journal.SQLitePath = filepath.Join(dir, "trades.sqlite")
	cfgPath := filepath.Join(dir, "trader.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))

	t.Setenv(config.EnvUsername, "trader")
	t.Setenv(config.EnvPassword, "pw")
	t.Setenv(config.EnvAccountID, "U42")
	t.Setenv(config.EnvBaseURL, "")

	out, err := execute(t, `{"symbol":"aapl","action":"buy","order_size":"3"}`, "place", "--config", cfgPath, "-")
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"order":{"id":"555"}}`, out)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, orders, 1)
	assert.Equal(t, "U42", orders[0]["acctId"])
	assert.Equal(t, float64(3), orders[0]["quantity"])

	recs, err := journal.NewJSONFile(cfg.Journal.Path, zerolog.Nop()).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "AAPL", recs[0].Symbol)

	db, err := journal.NewSQLite(cfg.Journal.SQLitePath, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	mirrored, err := db.Get(recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "555", mirrored.OrderID())

	// A failed order still exits cleanly and prints the error.
	out, err = execute(t, "", "place", "--config", cfgPath, "--signal", `{"action":"buy"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"no symbol provided in signal"}`, out)

	out, err = execute(t, "", "history", "list", "--config", cfgPath, "--status", "failed")
	require.NoError(t, err)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "UNKNOWN", listed[0]["symbol"])

	out, err = execute(t, "", "history", "show", "--config", cfgPath, recs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "** SUCCESS BUY AAPL")

	out, err = execute(t, "", "history", "export", "--config", cfgPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,timestamp,symbol"))
}

// clearIBKREnv unsets the IBKR variables for the test and restores them
// afterwards.
func clearIBKREnv(t *testing.T) {
	t.Helper()

	for _, k := range []string{config.EnvUsername, config.EnvPassword, config.EnvAccountID, config.EnvBaseURL} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestPlaceReadsGatewayURLFromDotEnv(t *testing.T) {
	var (
		mu   sync.Mutex
		hits []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/oauth/token":
			io.WriteString(w, `{"access_token":"tok"}`)
		case "/order":
			io.WriteString(w, `{"id":"777"}`)
		default:
			io.WriteString(w, `{}`)
		}
	}))
	defer srv.Close()

	clearIBKREnv(t)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Broker.BaseURL = "http://127.0.0.1:1/unused"
	cfg.Journal.Path = filepath.Join(dir, "trade_history.json")
	cfgPath := filepath.Join(dir, "trader.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"IBKR_USERNAME=trader\nIBKR_PASSWORD=pw\nIBKR_ACCOUNT_ID=U7\nIBKR_BASE_URL="+srv.URL+"\n"), 0o644))

	out, err := execute(t, "", "place", "--config", cfgPath, "--env-file", envFile, "--signal", `{"symbol":"SPY","action":"buy"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"order":{"id":"777"}}`, out)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/oauth/token", "/tickle", "/account", "/order"}, hits)
}

func TestPlaceWithBadConfigStillReportsAndRecords(t *testing.T) {
	clearIBKREnv(t)
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, err := execute(t, "", "place", "--config", filepath.Join(dir, "missing.yaml"), "--signal", `{"symbol":"aapl","action":"buy"}`)
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, false, res["success"])
	assert.Contains(t, res["error"], "load config")

	recs, err := journal.NewJSONFile(filepath.Join(dir, journal.DefaultPath), zerolog.Nop()).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, journal.StatusFailed, recs[0].Status())
	assert.Equal(t, "aapl", recs[0].Symbol)
	assert.Equal(t, "buy", recs[0].Action)
}

func TestPlaceWithUnreadableSignalFileRecordsFailure(t *testing.T) {
	clearIBKREnv(t)
	dir := t.TempDir()
	history := filepath.Join(dir, "history.json")
	cfg := config.Default()
	cfg.Journal.Path = history
	cfgPath := filepath.Join(dir, "trader.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))

	out, err := execute(t, "", "place", "--config", cfgPath, "--signal-file", filepath.Join(dir, "nope.json"))
	require.NoError(t, err)
	assert.Contains(t, out, `"success": false`)
	assert.Contains(t, out, "read signal file")

	recs, err := journal.NewJSONFile(history, zerolog.Nop()).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "UNKNOWN", recs[0].Symbol)
}

func TestPlaceRejectsStrayArgument(t *testing.T) {
	_, err := execute(t, "", "place", "AAPL")
	assert.ErrorContains(t, err, "unexpected argument")
}

func TestHistoryListRejectsBadStatus(t *testing.T) {
	_, err := execute(t, "", "history", "list", "--file", filepath.Join(t.TempDir(), "h.json"), "--status", "pending")
	assert.ErrorContains(t, err, "--status")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")

	out, err := execute(t, "", "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	out, err = execute(t, "", "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Resolver: fixed")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("resolver:\n  kind: magic\n"), 0o644))
	_, err = execute(t, "", "config", "validate", "-f", bad)
	assert.ErrorContains(t, err, "validation failed")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "trader version "+version+"\n", out)
}
