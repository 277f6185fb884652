package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tradeking/tradeking-api/internal/decision"
)

// Runner executes one decision cycle
type Runner interface {
	Run(ctx context.Context, req decision.RunRequest) (*decision.RunResult, error)
}

// Scheduler runs decision cycles on a fixed interval. A tick that arrives
// while a cycle is still running is skipped.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	request  decision.RunRequest
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
}

// New creates a scheduler. timeout bounds each cycle; zero means the interval.
func New(runner Runner, interval, timeout time.Duration, req decision.RunRequest) *Scheduler {
	if timeout <= 0 {
		timeout = interval
	}

	logger := log.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		runner:   runner,
		interval: interval,
		timeout:  timeout,
		request:  req,
		logger:   logger,
	}
}

// Start registers the job and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.entry == 0 {
		id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick)
		if err != nil {
			return fmt.Errorf("failed to schedule decision cycle: %w", err)
		}
		s.entry = id
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Dur("interval", s.interval).Msg("Scheduler started")
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow runs one cycle immediately, outside the schedule
func (s *Scheduler) RunNow(ctx context.Context) (*decision.RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.runner.Run(ctx, s.request)
}

func (s *Scheduler) tick() {
	start := time.Now()
	result, err := s.RunNow(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduled decision cycle failed")
		return
	}

	s.logger.Info().
		Str("decision_id", result.DecisionID).
		Int("trades", len(result.Trades)).
		Dur("duration", time.Since(start)).
		Msg("Scheduled decision cycle completed")
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
