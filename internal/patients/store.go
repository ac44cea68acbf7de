package patients

import (
	"context"
	"errors"

	"guideline-rag/internal/models"
)

var ErrNotFound = errors.New("patients: record not found")

// Store retrieves structured patient records. Implementations must return
// ErrNotFound for unknown ids so callers can distinguish a missing record
// from a backend failure.
type Store interface {
	GetByID(ctx context.Context, patientID string) (models.PatientRecord, error)
	List(ctx context.Context) ([]models.PatientRecord, error)
	Close() error
}

// Upserter accepts record writes. Only backends that own their records
// implement it.
type Upserter interface {
	Upsert(ctx context.Context, record models.PatientRecord) error
}

// Seed writes records into dst, stopping at the first failure. It backs
// the CLI path that loads a patient file into the database.
func Seed(ctx context.Context, dst Upserter, records []models.PatientRecord) (int, error) {
	for i, r := range records {
		if r.PatientID == "" {
			return i, errors.New("patients: record without patient_id")
		}
		if err := dst.Upsert(ctx, r); err != nil {
			return i, err
		}
	}
	return len(records), nil
}
