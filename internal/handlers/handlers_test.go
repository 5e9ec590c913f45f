package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimind/medimind/internal/models"
	"github.com/medimind/medimind/internal/notify"
)

type fakeLogs struct {
	existing map[string]*models.MedicineLog // key: medicineID+"|"+timeStr
	open     map[string][]*models.MedicineLog
	created  []string
	due      []string
	taken    []string
	skipped  []string
	missed   []string

	ensureErr error
	dueErr    error
	takenErr  error
}

func (f *fakeLogs) EnsureTodayLog(_ context.Context, medicineID, timeStr string, _ time.Time) (*models.MedicineLog, error) {
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	key := medicineID + "|" + timeStr
	if lg, ok := f.existing[key]; ok {
		return lg, nil
	}
	lg := &models.MedicineLog{
		ID:         fmt.Sprintf("log-%s-%s", medicineID, timeStr),
		MedicineID: medicineID,
		Status:     models.StatusPending,
	}
	f.existing[key] = lg
	f.created = append(f.created, lg.ID)
	return lg, nil
}

func (f *fakeLogs) MarkDue(_ context.Context, logID string) error {
	if f.dueErr != nil {
		return f.dueErr
	}
	f.due = append(f.due, logID)
	return nil
}

func (f *fakeLogs) MarkTaken(_ context.Context, logID string) error {
	if f.takenErr != nil {
		return f.takenErr
	}
	f.taken = append(f.taken, logID)
	return nil
}

func (f *fakeLogs) MarkSkipped(_ context.Context, logID string) error {
	f.skipped = append(f.skipped, logID)
	return nil
}

func (f *fakeLogs) MarkMissed(_ context.Context, logID string) error {
	f.missed = append(f.missed, logID)
	return nil
}

func (f *fakeLogs) ListOpenByMedicine(_ context.Context, medicineID string) ([]*models.MedicineLog, error) {
	return f.open[medicineID], nil
}

type fakeScheduler struct {
	scheduled []string
	cancelled []string
}

func (f *fakeScheduler) Schedule(_ context.Context, med *models.Medicine) ([]string, error) {
	f.scheduled = append(f.scheduled, med.ID)
	return []string{"medicine_" + med.ID + "_0900_2025-06-02"}, nil
}

func (f *fakeScheduler) CancelForMedicine(_ context.Context, medicineID string) error {
	f.cancelled = append(f.cancelled, medicineID)
	return nil
}

type fakeEscalator struct {
	armed   []string
	fired   []notify.Payload
	stopped []string
}

func (f *fakeEscalator) Arm(_ context.Context, logID, _, _, _ string) error {
	f.armed = append(f.armed, logID)
	return nil
}

func (f *fakeEscalator) HandleFire(_ context.Context, p notify.Payload) error {
	f.fired = append(f.fired, p)
	return nil
}

func (f *fakeEscalator) StopChain(_ context.Context, logID string) error {
	f.stopped = append(f.stopped, logID)
	return nil
}

func newFixture() (*Handlers, *fakeLogs, *fakeScheduler, *fakeEscalator) {
	logs := &fakeLogs{
		existing: map[string]*models.MedicineLog{},
		open:     map[string][]*models.MedicineLog{},
	}
	sched := &fakeScheduler{}
	esc := &fakeEscalator{}
	h := New(logs, sched, esc)
	h.now = func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.Local) }
	return h, logs, sched, esc
}

func reminderNotification() notify.Notification {
	return notify.Notification{
		Identifier: "medicine_m1_0900_2025-06-02",
		Payload: notify.Payload{
			Kind:         notify.KindReminder,
			MedicineID:   "m1",
			MedicineName: "Aspirin",
			Dosage:       "100mg",
			Time:         "09:00",
		},
	}
}

func missedNotification() notify.Notification {
	return notify.Notification{
		Identifier: "missed_m1_0900_2025-06-02",
		Payload: notify.Payload{
			Kind:       notify.KindMissed,
			MedicineID: "m1",
			Time:       "09:00",
		},
	}
}

func TestReminderFiredMarksDueAndArms(t *testing.T) {
	h, logs, _, esc := newFixture()
	logs.existing["m1|09:00"] = &models.MedicineLog{ID: "log1", MedicineID: "m1", Status: models.StatusPending}

	h.HandleFired(context.Background(), reminderNotification())

	assert.Equal(t, []string{"log1"}, logs.due)
	assert.Equal(t, []string{"log1"}, esc.armed)
	assert.Empty(t, logs.created)
}

func TestReminderFiredCreatesMissingLog(t *testing.T) {
	h, logs, _, esc := newFixture()

	h.HandleFired(context.Background(), reminderNotification())

	require.Equal(t, []string{"log-m1-09:00"}, logs.created)
	assert.Equal(t, []string{"log-m1-09:00"}, logs.due)
	assert.Equal(t, []string{"log-m1-09:00"}, esc.armed)
}

func TestReminderFiredAcknowledgedLogDoesNothing(t *testing.T) {
	h, logs, _, esc := newFixture()
	logs.existing["m1|09:00"] = &models.MedicineLog{ID: "log1", Status: models.StatusTaken}

	h.HandleFired(context.Background(), reminderNotification())

	assert.Empty(t, logs.due)
	assert.Empty(t, esc.armed)
}

func TestReminderFiredLookupErrorDoesNotArm(t *testing.T) {
	h, logs, _, esc := newFixture()
	logs.ensureErr = errors.New("db down")

	h.HandleFired(context.Background(), reminderNotification())

	assert.Empty(t, logs.due)
	assert.Empty(t, esc.armed)
}

func TestReminderFiredMarkDueErrorDoesNotArm(t *testing.T) {
	h, logs, _, esc := newFixture()
	logs.existing["m1|09:00"] = &models.MedicineLog{ID: "log1", Status: models.StatusPending}
	logs.dueErr = errors.New("conflict")

	h.HandleFired(context.Background(), reminderNotification())

	assert.Empty(t, esc.armed)
}

func TestFunnyFiredDelegatesToEscalation(t *testing.T) {
	h, _, _, esc := newFixture()
	n := notify.Notification{
		Identifier: "funny_log1_2",
		Payload:    notify.Payload{Kind: notify.KindFunny, LogID: "log1", Attempt: 2},
	}

	h.HandleFired(context.Background(), n)

	require.Len(t, esc.fired, 1)
	assert.Equal(t, "log1", esc.fired[0].LogID)
	assert.Equal(t, 2, esc.fired[0].Attempt)
}

func TestMissedFiredMarksLogMissed(t *testing.T) {
	h, logs, _, _ := newFixture()
	logs.existing["m1|09:00"] = &models.MedicineLog{ID: "log1", Status: models.StatusPending}

	h.HandleFired(context.Background(), missedNotification())

	assert.Equal(t, []string{"log1"}, logs.missed)
}

func TestMissedFiredCreatesLogWhenAbsent(t *testing.T) {
	h, logs, _, _ := newFixture()

	h.HandleFired(context.Background(), missedNotification())

	require.Equal(t, []string{"log-m1-09:00"}, logs.created)
	assert.Equal(t, []string{"log-m1-09:00"}, logs.missed)
}

func TestMissedFiredLeavesAcknowledgedLogAlone(t *testing.T) {
	h, logs, _, _ := newFixture()
	logs.existing["m1|09:00"] = &models.MedicineLog{ID: "log1", Status: models.StatusTaken}

	h.HandleFired(context.Background(), missedNotification())

	assert.Empty(t, logs.missed)
}

func TestUnknownKindChangesNothing(t *testing.T) {
	h, logs, _, esc := newFixture()

	h.HandleFired(context.Background(), notify.Notification{
		Identifier: "mystery_1",
		Payload:    notify.Payload{Kind: "mystery"},
	})

	assert.Empty(t, logs.due)
	assert.Empty(t, logs.missed)
	assert.Empty(t, esc.armed)
	assert.Empty(t, esc.fired)
}

func TestMedicineSavedStopsOpenChainsThenSchedules(t *testing.T) {
	h, logs, sched, esc := newFixture()
	logs.open["m1"] = []*models.MedicineLog{
		{ID: "log1", Status: models.StatusDue},
		{ID: "log2", Status: models.StatusPending},
	}

	ids, err := h.MedicineSaved(context.Background(), &models.Medicine{ID: "m1"})

	require.NoError(t, err)
	assert.NotEmpty(t, ids)
	assert.Equal(t, []string{"log1", "log2"}, esc.stopped)
	assert.Equal(t, []string{"m1"}, sched.scheduled)
}

func TestMedicineDeletedStopsChainsAndCancels(t *testing.T) {
	h, logs, sched, esc := newFixture()
	logs.open["m1"] = []*models.MedicineLog{{ID: "log1", Status: models.StatusDue}}

	err := h.MedicineDeleted(context.Background(), "m1")

	require.NoError(t, err)
	assert.Equal(t, []string{"log1"}, esc.stopped)
	assert.Equal(t, []string{"m1"}, sched.cancelled)
}

func TestMarkTakenStopsChainFirst(t *testing.T) {
	h, logs, _, esc := newFixture()

	err := h.MarkTaken(context.Background(), "log1")

	require.NoError(t, err)
	assert.Equal(t, []string{"log1"}, esc.stopped)
	assert.Equal(t, []string{"log1"}, logs.taken)
}

func TestMarkTakenPropagatesUpdateError(t *testing.T) {
	h, logs, _, esc := newFixture()
	logs.takenErr = errors.New("illegal transition")

	err := h.MarkTaken(context.Background(), "log1")

	assert.Error(t, err)
	// The chain is still stopped: a dead chain is better than a live one
	// nagging about a dose the user tried to acknowledge.
	assert.Equal(t, []string{"log1"}, esc.stopped)
}

func TestMarkSkippedStopsChainAndRecords(t *testing.T) {
	h, logs, _, esc := newFixture()

	err := h.MarkSkipped(context.Background(), "log1")

	require.NoError(t, err)
	assert.Equal(t, []string{"log1"}, esc.stopped)
	assert.Equal(t, []string{"log1"}, logs.skipped)
}
