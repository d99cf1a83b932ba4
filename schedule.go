package riverconf

import (
	"context"
	"time"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

// scheduleBinding holds a periodic handler pending registration.
type scheduleBinding struct {
	handler  func(context.Context) error
	name     string
	schedule string
}

// Scheduled returns a registration option for a periodic handler. The task
// must implement Name(), Schedule(), and Handle(ctx) methods; Schedule()
// returns a cron expression (5 fields: min hour day month weekday).
//
// Example:
//
//	type PruneJournal struct {
//	    repo *repository.Queries
//	}
//
//	func (t *PruneJournal) Name() string     { return "prune_journal" }
//	func (t *PruneJournal) Schedule() string { return "0 3 * * *" } // Daily at 03:00
//	func (t *PruneJournal) Handle(ctx context.Context) error {
//	    return t.repo.PruneExpired(ctx)
//	}
//
//	opts.NewService(pool, riverconf.Scheduled(&PruneJournal{repo: repo}))
func Scheduled[T interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}](task T) ServiceOption {
	return func(c *serviceConfig) {
		c.schedules = append(c.schedules, scheduleBinding{
			name:     task.Name(),
			schedule: task.Schedule(),
			handler:  task.Handle,
		})
	}
}

// scheduledExecutor adapts a periodic handler to the registry interface.
// Periodic invocations carry no payload.
type scheduledExecutor struct {
	handler func(context.Context) error
}

func (e *scheduledExecutor) Execute(ctx context.Context, _ []byte, _ ResultSink) error {
	return e.handler(ctx)
}

type cronScheduleAdapter struct {
	schedule cron.Schedule
}

func (a *cronScheduleAdapter) Next(current time.Time) time.Time {
	return a.schedule.Next(current)
}

func parseCronSchedule(expr string) (river.PeriodicSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return &cronScheduleAdapter{schedule: schedule}, nil
}
