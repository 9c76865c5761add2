package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bryan-buckman/crabnews/internal/model"
	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

// reloadDebounce groups the burst of events editors produce on save.
const reloadDebounce = 200 * time.Millisecond

// LoadPreferences reads the TOML document at path. A missing file yields
// the defaults; keys absent from the file keep their default values.
func LoadPreferences(path string) (model.Preferences, error) {
	prefs := model.DefaultPreferences()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("read preferences: %w", err)
	}
	if err := toml.Unmarshal(data, &prefs); err != nil {
		return model.DefaultPreferences(), fmt.Errorf("decode preferences %s: %w", path, err)
	}
	if err := ValidatePreferences(prefs); err != nil {
		return model.DefaultPreferences(), fmt.Errorf("invalid preferences %s: %w", path, err)
	}
	return prefs, nil
}

// ValidatePreferences checks that every field holds a known value.
func ValidatePreferences(p model.Preferences) error {
	return validate.Struct(p)
}

// WatchPreferences calls onChange with freshly loaded preferences whenever
// the file at path is written, created or replaced. It blocks until ctx is
// done, and returns at once when the file's directory does not exist.
func WatchPreferences(ctx context.Context, path string, logger zerolog.Logger, onChange func(model.Preferences)) error {
	// Watch the directory so atomic renames by editors are seen.
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		logger.Info().Str("dir", dir).Msg("preferences directory missing, not watching")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("preferences watcher error")
		case <-pending:
			pending = nil
			prefs, err := LoadPreferences(path)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("ignoring invalid preferences")
				continue
			}
			logger.Info().Str("path", path).Msg("preferences reloaded")
			onChange(prefs)
		}
	}
}
