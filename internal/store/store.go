// Package store persists run artifacts incrementally. Response records
// and dimension scores are appended to JSONL files the moment they are
// finalized, so a crash after prompt k never loses records 1..k-1.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/microsoft/chatbench/internal/models"
)

const (
	recordsFile     = "records.jsonl"
	scoresFile      = "scores.jsonl"
	manifestFile    = "manifest.json"
	aggregatesFile  = "aggregates.json"
	calibrationFile = "calibration.json"
)

// Store is an append-only result store rooted at one run directory.
// Appends are serialized by a mutex and flushed to disk before
// returning, making every returned nil error a durability guarantee.
type Store struct {
	dir string

	mu      sync.Mutex
	records *os.File
	scores  *os.File
}

// Open creates the run directory if needed and opens the append
// streams. An existing directory is resumed, not truncated.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", dir, err)
	}

	records, err := os.OpenFile(filepath.Join(dir, recordsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("store: opening records: %w", err)
	}

	scores, err := os.OpenFile(filepath.Join(dir, scoresFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		records.Close() //nolint:errcheck
		return nil, fmt.Errorf("store: opening scores: %w", err)
	}

	return &Store{dir: dir, records: records, scores: scores}, nil
}

// Dir returns the run directory.
func (s *Store) Dir() string {
	return s.dir
}

// AppendRecord durably appends one finalized response record.
func (s *Store) AppendRecord(r *models.ResponseRecord) error {
	return s.appendJSON(s.records, r)
}

// AppendScore durably appends one judge verdict.
func (s *Store) AppendScore(score *models.DimensionScore) error {
	return s.appendJSON(s.scores, score)
}

func (s *Store) appendJSON(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshaling: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("store: writing: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("store: syncing: %w", err)
	}
	return nil
}

// Records reads back every persisted response record, in append order.
func (s *Store) Records() ([]models.ResponseRecord, error) {
	var out []models.ResponseRecord
	err := readJSONL(filepath.Join(s.dir, recordsFile), func(line []byte) error {
		var r models.ResponseRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// Scores reads back every persisted judge verdict, in append order.
func (s *Store) Scores() ([]models.DimensionScore, error) {
	var out []models.DimensionScore
	err := readJSONL(filepath.Join(s.dir, scoresFile), func(line []byte) error {
		var sc models.DimensionScore
		if err := json.Unmarshal(line, &sc); err != nil {
			return err
		}
		out = append(out, sc)
		return nil
	})
	return out, err
}

// CompletedPairs returns the pair keys already finalized in this run
// directory, used to resume an interrupted run without resubmitting.
func (s *Store) CompletedPairs() (map[models.PairKey]bool, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	done := make(map[models.PairKey]bool, len(records))
	for i := range records {
		done[records[i].Key()] = true
	}
	return done, nil
}

func readJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: opening %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		if err := fn(raw); err != nil {
			return fmt.Errorf("store: %s line %d: %w", filepath.Base(path), line, err)
		}
	}
	return scanner.Err()
}

// WriteManifest writes the run manifest as a single JSON document.
func (s *Store) WriteManifest(m *models.RunManifest) error {
	return s.writeJSON(manifestFile, m)
}

// ReadManifest loads a previously written run manifest.
func (s *Store) ReadManifest() (*models.RunManifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("store: reading manifest: %w", err)
	}
	var m models.RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("store: parsing manifest: %w", err)
	}
	return &m, nil
}

// WriteAggregates writes the per-target aggregates.
func (s *Store) WriteAggregates(aggs map[string]models.TargetAggregate) error {
	return s.writeJSON(aggregatesFile, aggs)
}

// WriteCalibration writes the judge calibration report.
func (s *Store) WriteCalibration(report *models.CalibrationReport) error {
	return s.writeJSON(calibrationFile, report)
}

// ReadCalibration loads a previously written calibration report.
func (s *Store) ReadCalibration() (*models.CalibrationReport, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, calibrationFile))
	if err != nil {
		return nil, fmt.Errorf("store: reading calibration: %w", err)
	}
	var report models.CalibrationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("store: parsing calibration: %w", err)
	}
	return &report, nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshaling %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return fmt.Errorf("store: writing %s: %w", name, err)
	}
	return nil
}

// Close flushes and closes the append streams.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, f := range []*os.File{s.records, s.scores} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.records = nil
	s.scores = nil
	return firstErr
}
