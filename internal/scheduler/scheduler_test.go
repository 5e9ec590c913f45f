package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimind/medimind/internal/models"
	"github.com/medimind/medimind/internal/notify"
)

// monday8 is Monday 2025-06-02 08:00 local.
var monday8 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.Local)

func newTestScheduler(now time.Time) (*Scheduler, *notify.MemoryDevice) {
	device := notify.NewMemoryDevice()
	s := New(device, 60, 30*time.Second)
	s.now = func() time.Time { return now }
	return s, device
}

func testMedicine(times []string, days []int) *models.Medicine {
	return &models.Medicine{
		ID:         "m1",
		Name:       "Aspirin",
		Dosage:     "100mg",
		Times:      times,
		DaysOfWeek: days,
		StartDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local),
		IsActive:   true,
	}
}

func TestScheduleInactiveMedicine(t *testing.T) {
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"09:00"}, []int{1})
	med.IsActive = false

	ids, err := s.Schedule(context.Background(), med)
	require.NoError(t, err)
	assert.Empty(t, ids)

	live, err := device.ListLive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestScheduleOutsideDateRange(t *testing.T) {
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"09:00"}, []int{1})
	end := time.Date(2025, 5, 1, 0, 0, 0, 0, time.Local)
	med.EndDate = &end

	ids, err := s.Schedule(context.Background(), med)
	require.NoError(t, err)
	assert.Empty(t, ids)

	live, _ := device.ListLive(context.Background())
	assert.Empty(t, live)
}

func TestScheduleFutureTimeToday(t *testing.T) {
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"09:00"}, []int{1}) // Monday only

	ids, err := s.Schedule(context.Background(), med)
	require.NoError(t, err)
	require.Equal(t, []string{"medicine_m1_0900_2025-06-02"}, ids)

	n, ok := device.Get("medicine_m1_0900_2025-06-02")
	require.True(t, ok)
	assert.Equal(t, notify.KindReminder, n.Payload.Kind)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.Local), n.Trigger.At)
	assert.False(t, n.Trigger.Repeats())
}

func TestScheduleRecentlyPassedTimeGetsMissedTimer(t *testing.T) {
	// 07:30 is 30 minutes in the past: one missed timer, no exact timer.
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"07:30"}, []int{1})

	ids, err := s.Schedule(context.Background(), med)
	require.NoError(t, err)
	require.Equal(t, []string{"missed_m1_0730_2025-06-02"}, ids)

	n, ok := device.Get("missed_m1_0730_2025-06-02")
	require.True(t, ok)
	assert.Equal(t, notify.KindMissed, n.Payload.Kind)
	assert.Equal(t, monday8.Add(30*time.Second), n.Trigger.At)
}

func TestScheduleLongPassedTimeIsSkipped(t *testing.T) {
	// 06:59 is 61 minutes in the past: neither exact nor missed timer.
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"06:59"}, []int{1})

	ids, err := s.Schedule(context.Background(), med)
	require.NoError(t, err)
	assert.Empty(t, ids)

	live, _ := device.ListLive(context.Background())
	assert.Empty(t, live)
}

func TestScheduleWeeklyForOtherDays(t *testing.T) {
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"09:00"}, []int{3}) // Wednesday only

	ids, err := s.Schedule(context.Background(), med)
	require.NoError(t, err)
	require.Equal(t, []string{"weekly_m1_0900_3"}, ids)

	n, ok := device.Get("weekly_m1_0900_3")
	require.True(t, ok)
	assert.True(t, n.Trigger.Repeats())
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=WE;BYHOUR=9;BYMINUTE=0", n.Trigger.Rule)
}

func TestScheduleFullWeekScenario(t *testing.T) {
	// Monday 08:00, times 09:00/21:00 on Mon/Wed/Fri: both times are still in
	// the future today, so two exact timers plus one weekly timer per
	// (time, other weekday) pair.
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"09:00", "21:00"}, []int{1, 3, 5})

	ids, err := s.Schedule(context.Background(), med)
	require.NoError(t, err)

	live, _ := device.ListLive(context.Background())
	assert.ElementsMatch(t, []string{
		"medicine_m1_0900_2025-06-02",
		"medicine_m1_2100_2025-06-02",
		"weekly_m1_0900_3",
		"weekly_m1_0900_5",
		"weekly_m1_2100_3",
		"weekly_m1_2100_5",
	}, live)
	assert.Len(t, ids, 6)
}

func TestScheduleIsIdempotent(t *testing.T) {
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"09:00", "21:00"}, []int{1, 3, 5})
	ctx := context.Background()

	first, err := s.Schedule(ctx, med)
	require.NoError(t, err)
	liveAfterFirst, _ := device.ListLive(ctx)

	second, err := s.Schedule(ctx, med)
	require.NoError(t, err)
	liveAfterSecond, _ := device.ListLive(ctx)

	assert.ElementsMatch(t, first, second)
	assert.Equal(t, liveAfterFirst, liveAfterSecond)
}

func TestScheduleAfterEditRemovesStaleTimers(t *testing.T) {
	s, device := newTestScheduler(monday8)
	ctx := context.Background()

	med := testMedicine([]string{"09:00"}, []int{1, 3})
	_, err := s.Schedule(ctx, med)
	require.NoError(t, err)

	// Retimed from 09:00 to 10:00; the 09:00 timers must not survive.
	med.Times = []string{"10:00"}
	_, err = s.Schedule(ctx, med)
	require.NoError(t, err)

	live, _ := device.ListLive(ctx)
	assert.ElementsMatch(t, []string{
		"medicine_m1_1000_2025-06-02",
		"weekly_m1_1000_3",
	}, live)
}

func TestScheduleEmptyTimesOrDays(t *testing.T) {
	s, _ := newTestScheduler(monday8)
	ctx := context.Background()

	ids, err := s.Schedule(ctx, testMedicine(nil, []int{1}))
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = s.Schedule(ctx, testMedicine([]string{"09:00"}, nil))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestScheduleSkipsMalformedTime(t *testing.T) {
	s, device := newTestScheduler(monday8)
	med := testMedicine([]string{"9am", "09:00"}, []int{1})

	ids, err := s.Schedule(context.Background(), med)
	require.NoError(t, err)
	assert.Equal(t, []string{"medicine_m1_0900_2025-06-02"}, ids)

	live, _ := device.ListLive(context.Background())
	assert.Len(t, live, 1)
}

func TestCancelForMedicine(t *testing.T) {
	s, device := newTestScheduler(monday8)
	ctx := context.Background()

	_, err := s.Schedule(ctx, testMedicine([]string{"09:00", "21:00"}, []int{1, 3, 5}))
	require.NoError(t, err)

	other := testMedicine([]string{"12:00"}, []int{1})
	other.ID = "m2"
	_, err = s.Schedule(ctx, other)
	require.NoError(t, err)

	require.NoError(t, s.CancelForMedicine(ctx, "m1"))

	live, _ := device.ListLive(ctx)
	for _, id := range live {
		assert.NotContains(t, id, "_m1_")
	}
	assert.Contains(t, live, "medicine_m2_1200_2025-06-02")
}

func TestCancelForMedicineWithNoTimersIsNoop(t *testing.T) {
	s, _ := newTestScheduler(monday8)
	assert.NoError(t, s.CancelForMedicine(context.Background(), "nope"))
}

func TestCancelAll(t *testing.T) {
	s, device := newTestScheduler(monday8)
	ctx := context.Background()

	_, err := s.Schedule(ctx, testMedicine([]string{"09:00"}, []int{1, 3}))
	require.NoError(t, err)

	require.NoError(t, s.CancelAll(ctx))
	live, _ := device.ListLive(ctx)
	assert.Empty(t, live)
}
