package patients_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guideline-rag/internal/patients"
)

func writePatientFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patients.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileStore_ArrayFormat(t *testing.T) {
	path := writePatientFile(t, `[
		{"patient_id": "P001", "name": "Alex Rivers", "age": 55, "gender": "Male",
		 "smoking_history": "30 pack-years", "symptoms": ["haemoptysis"], "symptom_duration_days": 21},
		{"patient_id": "P002", "name": "Sam Okafor", "age": 42, "gender": "Female",
		 "symptoms": ["rectal bleeding", "weight loss"]}
	]`)

	store, err := patients.OpenFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	record, err := store.GetByID(context.Background(), "P001")
	require.NoError(t, err)
	assert.Equal(t, "Alex Rivers", record.Name)
	assert.Equal(t, 55, record.Age)
	assert.Equal(t, []string{"haemoptysis"}, record.Symptoms)
	assert.Equal(t, 21, record.SymptomDurationDays)

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "P001", list[0].PatientID)
	assert.Equal(t, "P002", list[1].PatientID)
}

func TestFileStore_KeyedFormat(t *testing.T) {
	path := writePatientFile(t, `{
		"P010": {"name": "Jo Hart", "age": 67, "gender": "Female", "symptoms": ["dysphagia"]}
	}`)

	store, err := patients.OpenFileStore(path)
	require.NoError(t, err)

	record, err := store.GetByID(context.Background(), "P010")
	require.NoError(t, err)
	// The map key fills in a missing patient_id field.
	assert.Equal(t, "P010", record.PatientID)
	assert.Equal(t, "Jo Hart", record.Name)
}

func TestFileStore_NotFound(t *testing.T) {
	path := writePatientFile(t, `[]`)

	store, err := patients.OpenFileStore(path)
	require.NoError(t, err)

	_, err = store.GetByID(context.Background(), "P999")
	assert.ErrorIs(t, err, patients.ErrNotFound)
}

func TestFileStore_BadInputs(t *testing.T) {
	_, err := patients.OpenFileStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = patients.OpenFileStore(writePatientFile(t, `not json`))
	assert.Error(t, err)

	_, err = patients.OpenFileStore(writePatientFile(t, `[{"name": "No ID"}]`))
	assert.Error(t, err)
}
