package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/medimind/medimind/internal/database"
	"github.com/medimind/medimind/internal/models"
)

type MedicineRepository struct {
	db *database.DB
}

func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

func (r *MedicineRepository) Create(ctx context.Context, med *models.Medicine) error {
	if med.ID == "" {
		med.ID = uuid.NewString()
	}
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO medicines (id, user_id, name, dosage, frequency, times, days_of_week, start_date, end_date, notes, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		med.ID, med.UserID, med.Name, med.Dosage, med.Frequency, med.Times, med.DaysOfWeek,
		med.StartDate, med.EndDate, med.Notes, med.IsActive,
	).Scan(&med.CreatedAt, &med.UpdatedAt)
}

const medicineColumns = `id, user_id, name, dosage, frequency, times, days_of_week, start_date, end_date, notes, is_active, created_at, updated_at`

func scanMedicine(row interface{ Scan(dest ...any) error }) (*models.Medicine, error) {
	med := &models.Medicine{}
	err := row.Scan(&med.ID, &med.UserID, &med.Name, &med.Dosage, &med.Frequency, &med.Times,
		&med.DaysOfWeek, &med.StartDate, &med.EndDate, &med.Notes, &med.IsActive, &med.CreatedAt, &med.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return med, nil
}

func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*models.Medicine, error) {
	return scanMedicine(r.db.Pool.QueryRow(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id))
}

func (r *MedicineRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Medicine, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []*models.Medicine
	for rows.Next() {
		med, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		meds = append(meds, med)
	}
	return meds, rows.Err()
}

// GetActive returns every active medicine. The startup pass uses it to
// rebuild the full timer set from storage.
func (r *MedicineRepository) GetActive(ctx context.Context) ([]*models.Medicine, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE is_active = true
		 AND start_date <= CURRENT_DATE AND (end_date IS NULL OR end_date >= CURRENT_DATE)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []*models.Medicine
	for rows.Next() {
		med, err := scanMedicine(rows)
		if err != nil {
			return nil, err
		}
		meds = append(meds, med)
	}
	return meds, rows.Err()
}

func (r *MedicineRepository) Update(ctx context.Context, med *models.Medicine) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE medicines SET name = $1, dosage = $2, frequency = $3, times = $4, days_of_week = $5,
		 start_date = $6, end_date = $7, notes = $8, is_active = $9, updated_at = NOW()
		 WHERE id = $10`,
		med.Name, med.Dosage, med.Frequency, med.Times, med.DaysOfWeek,
		med.StartDate, med.EndDate, med.Notes, med.IsActive, med.ID,
	)
	return err
}

func (r *MedicineRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	return err
}
