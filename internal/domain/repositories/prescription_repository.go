package repositories

import (
	"context"
	"time"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
)

// PrescriptionRepository defines the read-only interface over ingested
// prescription rows
type PrescriptionRepository interface {
	// LatestForPatient returns the patient's most recent prescription,
	// which carries the insurance identifiers used for resolution
	LatestForPatient(ctx context.Context, patientID string) (*entities.Prescription, error)

	// FillHistory aggregates the patient's fills over all time and within
	// the recent window, plus their historical substitution refusals
	FillHistory(ctx context.Context, patientID string, recentWindow time.Duration) (*entities.PatientFillHistory, error)
}
