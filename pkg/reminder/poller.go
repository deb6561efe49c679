// Package reminder fires one-shot notifications for tasks whose reminder time has passed.
package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often the store is polled for due reminders.
const DefaultInterval = 60 * time.Second

// errNothingDue aborts the update so that idle polls don't rewrite the store.
var errNothingDue = errors.New("no reminders due")

// Notifier is told about each reminder as it fires.
type Notifier interface {
	Notify(task *db.Task)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(task *db.Task)

// Notify calls f(task).
func (f NotifierFunc) Notify(task *db.Task) {
	f(task)
}

// Poller periodically scans all tasks and fires the due reminders.
//
// A reminder is pending while reminder_time is set and notified is false. It fires once now reaches
// reminder_time, which sets notified; only an edit of the reminder re-arms it.
type Poller struct {
	repo     *db.Repository
	notifier Notifier
	interval time.Duration
	now      func() time.Time
	filter   func(*db.Task) bool
	fired    prometheus.Counter
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the poll interval.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// WithFilter restricts firing to tasks the filter accepts. Other tasks stay pending.
func WithFilter(filter func(*db.Task) bool) Option {
	return func(p *Poller) {
		p.filter = filter
	}
}

// NewPoller returns a Poller that reports fired reminders to notifier.
func NewPoller(repo *db.Repository, notifier Notifier, opts ...Option) *Poller {
	p := &Poller{
		repo:     repo,
		notifier: notifier,
		interval: DefaultInterval,
		now:      time.Now,
		filter:   func(*db.Task) bool { return true },
		fired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "task_tracker_reminders_fired_total",
			Help: "Total reminders fired",
		}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Collector exposes the fired reminder counter for registration.
func (p *Poller) Collector() prometheus.Collector {
	return p.fired
}

// Run polls right away and then every interval until ctx is done. Poll failures are logged and retried
// on the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Msg("starting reminder poller")

	if _, err := p.Poll(ctx); err != nil {
		log.Error().Err(err).Msg("error polling reminders")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping reminder poller")

			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				log.Error().Err(err).Msg("error polling reminders")
			}
		}
	}
}

// Poll fires every due reminder once, persists the notified flags and then notifies. It returns the
// fired tasks.
func (p *Poller) Poll(ctx context.Context) ([]*db.Task, error) {
	now := p.now()
	fired := []*db.Task{}

	err := p.repo.UpdateTasks(ctx, func(tasks []*db.Task) ([]*db.Task, error) {
		for _, task := range tasks {
			if task.Notified || task.ReminderTime == "" || !p.filter(task) {
				continue
			}

			reminder, ok := task.Reminder()
			if !ok {
				log.Debug().Str("task_id", task.ID).Str("reminder_time", task.ReminderTime).
					Msg("skipping unparsable reminder")

				continue
			}

			if now.Before(reminder) {
				continue
			}

			task.Notified = true
			fired = append(fired, task.Clone())
		}

		if len(fired) == 0 {
			return nil, errNothingDue
		}

		return tasks, nil
	})
	if errors.Is(err, errNothingDue) {
		return fired, nil
	}

	if err != nil {
		return nil, err
	}

	for _, task := range fired {
		log.Info().Str("task_id", task.ID).Str("user", task.CreatedBy).Msgf("reminder for '%s'", task.Title)

		p.fired.Inc()

		if p.notifier != nil {
			p.notifier.Notify(task)
		}
	}

	return fired, nil
}
