package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultPath is the history file used when none is configured.
const DefaultPath = "trade_history.json"

// CorruptSuffix is appended to the history path when an unreadable file is
// set aside.
const CorruptSuffix = ".corrupt"

// JSONFile keeps the history as one indented JSON array. Each Log reads the
// whole file, appends, and replaces it atomically.
type JSONFile struct {
	path string
	log  zerolog.Logger
}

var _ Journal = (*JSONFile)(nil)

// fileLocks serialises writers of the same path within this process.
var fileLocks sync.Map

func lockFor(path string) *sync.Mutex {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	mu, _ := fileLocks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func NewJSONFile(path string, log zerolog.Logger) *JSONFile {
	if path == "" {
		path = DefaultPath
	}
	return &JSONFile{
		path: path,
		log:  log.With().Str("journal", "json").Str("path", path).Logger(),
	}
}

func (j *JSONFile) Path() string { return j.path }

func (j *JSONFile) Log(rec TradeRecord) Outcome {
	mu := lockFor(j.path)
	mu.Lock()
	defer mu.Unlock()

	entry, err := json.Marshal(rec)
	if err != nil {
		j.log.Error().Err(err).Msg("encode trade record")
		return Dropped(fmt.Sprintf("encode trade record: %v", err))
	}

	entries, warning, err := j.load()
	if err != nil {
		j.log.Error().Err(err).Msg("read trade history")
		return Dropped(fmt.Sprintf("read trade history: %v", err))
	}
	entries = append(entries, entry)

	if err := j.write(entries); err != nil {
		j.log.Error().Err(err).Msg("write trade history")
		return Dropped(fmt.Sprintf("write trade history: %v", err))
	}

	j.log.Info().Str("id", rec.ID).Str("status", string(rec.Status())).Int("records", len(entries)).Msg("trade logged")
	if warning != "" {
		return LoggedWithWarning(warning)
	}
	return Logged()
}

// load returns the existing entries untouched. A missing or blank file is an
// empty history. A file that is not a JSON array is moved aside and the
// history restarts; that case comes back as a warning.
func (j *JSONFile) load() ([]json.RawMessage, string, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", nil
	}

	var entries []json.RawMessage
	perr := json.Unmarshal(data, &entries)
	if perr == nil {
		return entries, "", nil
	}

	backup := j.path + CorruptSuffix
	warning := fmt.Sprintf("trade history %s is not a JSON array (%v); starting a new history", j.path, perr)
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		warning += fmt.Sprintf("; backup failed: %v", err)
	} else {
		warning += "; previous content saved to " + backup
	}
	j.log.Warn().Err(perr).Str("backup", backup).Msg("discarding corrupt trade history")
	return nil, warning, nil
}

func (j *JSONFile) write(entries []json.RawMessage) error {
	if entries == nil {
		entries = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(j.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, j.path)
}

// ReadAll decodes every record in the history file. Unlike Log it fails on
// a corrupt file instead of discarding it.
func (j *JSONFile) ReadAll() ([]TradeRecord, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var recs []TradeRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", j.path, err)
	}
	return recs, nil
}

func (j *JSONFile) Close() error { return nil }
