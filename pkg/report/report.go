// Package report persists run records: one JSON file per print run, keyed
// by run ID, plus a SQLite index (History) for listing and filtering.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/logger"
)

const recordExt = ".json"

// ErrNotFound is returned by Load for an unknown run ID.
var ErrNotFound = errors.New("run record not found")

// Path returns the record file for runID in dir.
func Path(dir, runID string) string {
	return filepath.Join(dir, runID+recordExt)
}

// WriteRun writes result to <dir>/<run-id>.json, replacing any previous
// record with the same ID. The file is written atomically.
func WriteRun(dir string, result *core.RunResult) (string, error) {
	if result == nil || result.RunID == "" {
		return "", fmt.Errorf("write run: missing run ID")
	}
	if strings.ContainsAny(result.RunID, `/\`) {
		return "", fmt.Errorf("write run: invalid run ID %q", result.RunID)
	}
	if err := ensureDir(dir); err != nil {
		return "", err
	}

	path := Path(dir, result.RunID)
	if err := atomicWriteJSON(path, result); err != nil {
		return "", fmt.Errorf("write run %s: %w", result.RunID, err)
	}
	logger.Debug("Run record written to %s", path)
	return path, nil
}

// Load reads one run record.
func Load(dir, runID string) (*core.RunResult, error) {
	data, err := os.ReadFile(Path(dir, runID)) //#nosec G304 -- path built from report dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var result core.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse run %s: %w", runID, err)
	}
	return &result, nil
}

// List returns every run record in dir, oldest first. A missing directory
// yields no records. Unreadable files are logged and skipped.
func List(dir string) ([]*core.RunResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read report dir: %w", err)
	}

	var runs []*core.RunResult
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != recordExt {
			continue
		}
		r, err := Load(dir, strings.TrimSuffix(e.Name(), recordExt))
		if err != nil {
			logger.Warn("Skipping run record %s: %v", e.Name(), err)
			continue
		}
		runs = append(runs, r)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
	return runs, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return nil
}

// atomicWriteJSON writes v to a temp file next to path, then renames it.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".run-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
