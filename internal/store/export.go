package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/verte-zerg/typist/internal/model"
)

const exportExt = ".json"

// Export writes a result that could not be saved to dir as JSON and returns
// the file path. The file is named after the session, so exporting the same
// result twice overwrites one file.
func Export(dir string, res model.Result) (string, error) {
	if res.SessionID == "" {
		return "", errors.New("result has no session id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	path := filepath.Join(dir, res.SessionID+exportExt)
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		if cerr := tmp.Close(); cerr != nil {
			// Best-effort close on write failure.
			_ = cerr
		}
		if rerr := os.Remove(tmp.Name()); rerr != nil {
			// Best-effort cleanup.
			_ = rerr
		}
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// ReadExports loads every exported result in dir, ordered by file name.
// A missing directory holds no exports.
func ReadExports(dir string) ([]model.Result, []string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), exportExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	results := make([]model.Result, 0, len(names))
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		var res model.Result
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		results = append(results, res)
		paths = append(paths, path)
	}
	return results, paths, nil
}

// ImportExports saves previously exported results and removes their files.
// Saves are idempotent, so a file left behind by an interrupted import is
// safe to import again. It returns the number of imported results.
func ImportExports(ctx context.Context, saver Saver, dir string, logger *slog.Logger) (int, error) {
	results, paths, err := ReadExports(dir)
	if err != nil {
		return 0, err
	}
	imported := 0
	for i, res := range results {
		if _, err := saver.Save(ctx, res); err != nil {
			return imported, err
		}
		if err := os.Remove(paths[i]); err != nil {
			return imported, err
		}
		imported++
		if logger != nil {
			logger.Info("imported unsaved result", "session", res.SessionID, "path", paths[i])
		}
	}
	return imported, nil
}
