// Package store keeps a JSON history of runs, target builds and device
// outcomes.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const (
	runsFile    = "runs.json"
	targetsFile = "targets.json"
	devicesFile = "devices.json"
)

// Store manages persistence of run records.
type Store struct {
	root string
	mu   sync.Mutex
}

// New creates a Store rooted at the given directory (typically
// <dist>/droidclang).
func New(root string) *Store {
	return &Store{root: root}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

// AddRun appends a run record.
func (s *Store) AddRun(r RunRecord) error {
	return s.appendRecord(runsFile, r)
}

// AddTarget appends a target record.
func (s *Store) AddTarget(r TargetRecord) error {
	return s.appendRecord(targetsFile, r)
}

// AddDevice appends a device record.
func (s *Store) AddDevice(r DeviceRecord) error {
	return s.appendRecord(devicesFile, r)
}

// Runs returns all run records.
func (s *Store) Runs() ([]RunRecord, error) {
	var records []RunRecord
	err := s.loadRecords(runsFile, &records)
	return records, err
}

// Targets returns the target records of run, or of every run when run is
// empty.
func (s *Store) Targets(run string) ([]TargetRecord, error) {
	var records []TargetRecord
	if err := s.loadRecords(targetsFile, &records); err != nil {
		return nil, err
	}
	if run == "" {
		return records, nil
	}
	var out []TargetRecord
	for _, r := range records {
		if r.RunID == run {
			out = append(out, r)
		}
	}
	return out, nil
}

// Devices returns the device records of run, or of every run when run is
// empty.
func (s *Store) Devices(run string) ([]DeviceRecord, error) {
	var records []DeviceRecord
	if err := s.loadRecords(devicesFile, &records); err != nil {
		return nil, err
	}
	if run == "" {
		return records, nil
	}
	var out []DeviceRecord
	for _, r := range records {
		if r.RunID == run {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)

	// Read existing records
	var records []json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &records)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}
