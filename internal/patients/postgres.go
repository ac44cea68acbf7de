package patients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"guideline-rag/internal/models"
)

type patientRow struct {
	bun.BaseModel `bun:"table:patients,alias:p"`

	PatientID           string   `bun:"patient_id,pk"`
	Name                string   `bun:"name,notnull"`
	Age                 int      `bun:"age"`
	Gender              string   `bun:"gender"`
	SmokingHistory      string   `bun:"smoking_history"`
	Symptoms            []string `bun:"symptoms,array"`
	SymptomDurationDays int      `bun:"symptom_duration_days"`
}

// PostgresStore keeps patient records in a postgres table, for deployments
// where the record system of truth is a shared database rather than a
// local file.
type PostgresStore struct {
	db *bun.DB
}

// OpenPostgresStore connects with the given DSN and ensures the patients
// table exists.
func OpenPostgresStore(ctx context.Context, dsn string, verbose bool) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if verbose {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if _, err := db.NewCreateTable().Model((*patientRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("patients: create table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, patientID string) (models.PatientRecord, error) {
	var row patientRow
	err := s.db.NewSelect().Model(&row).Where("patient_id = ?", patientID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PatientRecord{}, fmt.Errorf("%w: %s", ErrNotFound, patientID)
	}
	if err != nil {
		return models.PatientRecord{}, fmt.Errorf("patients: select: %w", err)
	}
	return recordFromRow(row), nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.PatientRecord, error) {
	var rows []patientRow
	if err := s.db.NewSelect().Model(&rows).Order("patient_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("patients: select all: %w", err)
	}
	out := make([]models.PatientRecord, len(rows))
	for i, r := range rows {
		out[i] = recordFromRow(r)
	}
	return out, nil
}

// Upsert writes a record, replacing any existing row with the same id.
func (s *PostgresStore) Upsert(ctx context.Context, record models.PatientRecord) error {
	row := rowFromRecord(record)
	_, err := s.db.NewInsert().Model(&row).On("CONFLICT (patient_id) DO UPDATE").Exec(ctx)
	if err != nil {
		return fmt.Errorf("patients: upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func recordFromRow(r patientRow) models.PatientRecord {
	return models.PatientRecord{
		PatientID:           r.PatientID,
		Name:                r.Name,
		Age:                 r.Age,
		Gender:              r.Gender,
		SmokingHistory:      r.SmokingHistory,
		Symptoms:            r.Symptoms,
		SymptomDurationDays: r.SymptomDurationDays,
	}
}

func rowFromRecord(r models.PatientRecord) patientRow {
	return patientRow{
		PatientID:           r.PatientID,
		Name:                r.Name,
		Age:                 r.Age,
		Gender:              r.Gender,
		SmokingHistory:      r.SmokingHistory,
		Symptoms:            r.Symptoms,
		SymptomDurationDays: r.SymptomDurationDays,
	}
}
