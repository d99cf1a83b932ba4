package riverconf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pruneTask implements the scheduled task interface.
type pruneTask struct {
	schedule string
	calls    int
}

func (t *pruneTask) Name() string     { return "prune_journal" }
func (t *pruneTask) Schedule() string { return t.schedule }

func (t *pruneTask) Handle(ctx context.Context) error {
	t.calls++
	return nil
}

func TestScheduled(t *testing.T) {
	t.Parallel()

	cfg := newServiceConfig()
	task := &pruneTask{schedule: "0 3 * * *"}

	opt := Scheduled[*pruneTask](task)
	opt(cfg)

	require.Len(t, cfg.schedules, 1)
	assert.Equal(t, "prune_journal", cfg.schedules[0].name)
	assert.Equal(t, "0 3 * * *", cfg.schedules[0].schedule)
	assert.NotNil(t, cfg.schedules[0].handler)
}

func TestScheduledExecutor_IgnoresPayload(t *testing.T) {
	t.Parallel()

	task := &pruneTask{}
	exec := &scheduledExecutor{handler: task.Handle}

	require.NoError(t, exec.Execute(context.Background(), []byte("ignored"), nil))
	assert.Equal(t, 1, task.calls)
}

func TestParseCronSchedule_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{name: "every minute", expr: "* * * * *"},
		{name: "every hour", expr: "0 * * * *"},
		{name: "daily at midnight", expr: "0 0 * * *"},
		{name: "every 15 minutes", expr: "*/15 * * * *"},
		{name: "weekly on Sunday", expr: "0 0 * * 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			schedule, err := parseCronSchedule(tt.expr)
			require.NoError(t, err)
			require.NotNil(t, schedule)

			now := time.Now()
			assert.True(t, schedule.Next(now).After(now), "next time should be in the future")
		})
	}
}

func TestParseCronSchedule_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{name: "empty", expr: ""},
		{name: "too few fields", expr: "* * *"},
		{name: "seconds field", expr: "* * * * * *"},
		{name: "invalid minute", expr: "60 * * * *"},
		{name: "garbage", expr: "not a cron expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseCronSchedule(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestCronScheduleAdapter_Next(t *testing.T) {
	t.Parallel()

	schedule, err := parseCronSchedule("0 * * * *") // Every hour
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	next := schedule.Next(base)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), next)

	next2 := schedule.Next(next)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), next2)
}
