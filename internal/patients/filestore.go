package patients

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"guideline-rag/internal/models"
)

// FileStore serves patient records from a JSON file loaded once at open.
// The file holds either a JSON array of records or an object keyed by
// patient id.
type FileStore struct {
	mu      sync.RWMutex
	records map[string]models.PatientRecord
}

func OpenFileStore(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("patients: read %s: %w", path, err)
	}

	records, err := parseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("patients: parse %s: %w", path, err)
	}

	log.Info().Int("patients", len(records)).Str("path", path).Msg("Loaded patient records")
	return &FileStore{records: records}, nil
}

func parseRecords(data []byte) (map[string]models.PatientRecord, error) {
	records := make(map[string]models.PatientRecord)

	var list []models.PatientRecord
	if err := json.Unmarshal(data, &list); err == nil {
		for _, r := range list {
			if r.PatientID == "" {
				return nil, fmt.Errorf("record %q has no patient_id", r.Name)
			}
			records[r.PatientID] = r
		}
		return records, nil
	}

	var keyed map[string]models.PatientRecord
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, err
	}
	for id, r := range keyed {
		if r.PatientID == "" {
			r.PatientID = id
		}
		records[id] = r
	}
	return records, nil
}

func (s *FileStore) GetByID(_ context.Context, patientID string) (models.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[patientID]
	if !ok {
		return models.PatientRecord{}, fmt.Errorf("%w: %s", ErrNotFound, patientID)
	}
	return record, nil
}

func (s *FileStore) List(_ context.Context) ([]models.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PatientRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out, nil
}

func (s *FileStore) Close() error { return nil }
