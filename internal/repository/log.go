package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medimind/medimind/internal/database"
	"github.com/medimind/medimind/internal/models"
	"github.com/medimind/medimind/internal/timeutil"
)

type MedicineLogRepository struct {
	db *database.DB
}

func NewMedicineLogRepository(db *database.DB) *MedicineLogRepository {
	return &MedicineLogRepository{db: db}
}

const logColumns = `id, user_id, medicine_id, scheduled_time, taken_time, status, notes, created_at, updated_at`

func scanLog(row interface{ Scan(dest ...any) error }) (*models.MedicineLog, error) {
	lg := &models.MedicineLog{}
	err := row.Scan(&lg.ID, &lg.UserID, &lg.MedicineID, &lg.ScheduledTime, &lg.TakenTime,
		&lg.Status, &lg.Notes, &lg.CreatedAt, &lg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return lg, nil
}

func (r *MedicineLogRepository) Create(ctx context.Context, lg *models.MedicineLog) error {
	if lg.ID == "" {
		lg.ID = uuid.NewString()
	}
	if lg.Status == "" {
		lg.Status = models.StatusPending
	}
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO medicine_logs (id, user_id, medicine_id, scheduled_time, status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		lg.ID, lg.UserID, lg.MedicineID, lg.ScheduledTime, lg.Status, lg.Notes,
	).Scan(&lg.CreatedAt, &lg.UpdatedAt)
}

func (r *MedicineLogRepository) GetByID(ctx context.Context, id string) (*models.MedicineLog, error) {
	return scanLog(r.db.Pool.QueryRow(ctx,
		`SELECT `+logColumns+` FROM medicine_logs WHERE id = $1`, id))
}

// GetStatus returns the current acknowledgement status of a log entry.
func (r *MedicineLogRepository) GetStatus(ctx context.Context, logID string) (models.LogStatus, error) {
	var status models.LogStatus
	err := r.db.Pool.QueryRow(ctx,
		`SELECT status FROM medicine_logs WHERE id = $1`, logID,
	).Scan(&status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// setStatus applies a validated status transition. Illegal transitions are
// rejected with an error rather than silently accepted.
func (r *MedicineLogRepository) setStatus(ctx context.Context, logID string, next models.LogStatus, takenTime *time.Time) error {
	current, err := r.GetStatus(ctx, logID)
	if err != nil {
		return fmt.Errorf("failed to read log %s: %w", logID, err)
	}
	if err := current.CheckTransition(next); err != nil {
		return err
	}
	// The status guard in the WHERE clause keeps a concurrent transition from
	// being overwritten.
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE medicine_logs SET status = $1, taken_time = COALESCE($2, taken_time), updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		next, takenTime, logID, current,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("log %s changed status concurrently, %s -> %s not applied", logID, current, next)
	}
	return nil
}

func (r *MedicineLogRepository) MarkDue(ctx context.Context, logID string) error {
	return r.setStatus(ctx, logID, models.StatusDue, nil)
}

func (r *MedicineLogRepository) MarkTaken(ctx context.Context, logID string) error {
	now := time.Now()
	return r.setStatus(ctx, logID, models.StatusTaken, &now)
}

func (r *MedicineLogRepository) MarkSkipped(ctx context.Context, logID string) error {
	return r.setStatus(ctx, logID, models.StatusSkipped, nil)
}

func (r *MedicineLogRepository) MarkMissed(ctx context.Context, logID string) error {
	return r.setStatus(ctx, logID, models.StatusMissed, nil)
}

// findForSlot returns the log for the medicine's HH:MM slot on the day's
// date regardless of status, or nil when none exists.
func (r *MedicineLogRepository) findForSlot(ctx context.Context, medicineID, timeStr string, day time.Time) (*models.MedicineLog, error) {
	lg, err := scanLog(r.db.Pool.QueryRow(ctx,
		`SELECT `+logColumns+` FROM medicine_logs
		 WHERE medicine_id = $1
		   AND scheduled_time::date = $2::date
		   AND to_char(scheduled_time, 'HH24:MI') = $3
		 ORDER BY created_at LIMIT 1`,
		medicineID, day, timeStr))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lg, nil
}

// EnsureTodayLog returns the log for (medicine, time) on the given day,
// creating a pending one when absent. The owning user comes from the
// medicine row, so a fired notification payload is enough to call this.
func (r *MedicineLogRepository) EnsureTodayLog(ctx context.Context, medicineID, timeStr string, now time.Time) (*models.MedicineLog, error) {
	lg, err := r.findForSlot(ctx, medicineID, timeStr, now)
	if err != nil || lg != nil {
		return lg, err
	}

	hour, minute, err := timeutil.ParseClock(timeStr)
	if err != nil {
		return nil, err
	}
	lg, err = scanLog(r.db.Pool.QueryRow(ctx,
		`INSERT INTO medicine_logs (id, user_id, medicine_id, scheduled_time, status)
		 SELECT $1, user_id, id, $2, 'pending' FROM medicines WHERE id = $3
		 RETURNING `+logColumns,
		uuid.NewString(), timeutil.At(now, hour, minute), medicineID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("medicine %s not found", medicineID)
	}
	if err != nil {
		return nil, err
	}
	return lg, nil
}

// ListOpenByMedicine returns the medicine's logs still awaiting
// acknowledgement (pending or due).
func (r *MedicineLogRepository) ListOpenByMedicine(ctx context.Context, medicineID string) ([]*models.MedicineLog, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+logColumns+` FROM medicine_logs
		 WHERE medicine_id = $1 AND status IN ('pending', 'due')
		 ORDER BY scheduled_time`,
		medicineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.MedicineLog
	for rows.Next() {
		lg, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, lg)
	}
	return logs, rows.Err()
}
