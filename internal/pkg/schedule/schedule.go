// Package schedule runs the bot's periodic jobs on gocron.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger adapts zerolog to gocron's logger.
type Logger struct {
	zl zerolog.Logger
}

var _ gocron.Logger = Logger{}

// NewLogger wraps a zerolog logger for gocron.
func NewLogger(zl zerolog.Logger) Logger {
	return Logger{zl: zl.With().Str("component", "scheduler").Logger()}
}

func (l Logger) Debug(msg string, args ...any) { l.log(l.zl.Debug(), msg, args) }
func (l Logger) Info(msg string, args ...any)  { l.log(l.zl.Info(), msg, args) }
func (l Logger) Warn(msg string, args ...any)  { l.log(l.zl.Warn(), msg, args) }
func (l Logger) Error(msg string, args ...any) { l.log(l.zl.Error(), msg, args) }

// log attaches gocron's key/value pairs as fields.
func (l Logger) log(event *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		event = event.Interface(fmt.Sprint(args[i]), args[i+1])
	}
	if len(args)%2 == 1 {
		event = event.Interface("extra", args[len(args)-1])
	}
	event.Msg(msg)
}

// Scheduler runs named jobs at fixed intervals.
type Scheduler struct {
	s gocron.Scheduler
}

// New creates a stopped Scheduler logging through the global zerolog logger.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLogger(NewLogger(log.Logger)))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{s: s}, nil
}

// Every runs fn every interval. A run still in progress when the next one is due skips that one.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context) error) error {
	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(_ uuid.UUID, jobName string, err error) {
				log.Error().Err(err).Str("job", jobName).Msg("Scheduled job failed")
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	log.Info().Str("job", name).Dur("interval", interval).Msg("Job scheduled")
	return nil
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.s.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// Start starts running jobs.
func (s *Scheduler) Start() {
	s.s.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.s.Shutdown()
}
