/*
scheduler.go - Payroll period horizon scheduler

PURPOSE:
  Keeps the generated period sequence ahead of the calendar. The sequence
  is generated once from the anchor and covers a fixed number of future
  periods; without extension "current period" eventually fails.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Appends periods after the last stored one when fewer than MinAhead
    remain after today's (or today is past the last period)
  - Existing period ids keep their date ranges
  - Does nothing until an anchor has been configured
  - Extension holds the CalendarService mutex, so it never interleaves
    with API-triggered configuration

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - MinAhead: Periods that must remain after the current one (default: 2)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewHorizonScheduler(calendar, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - scheduling/calendar.go: CalendarService.EnsureHorizon
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/shift-engine/scheduling"
)

// HorizonScheduler extends the payroll period sequence in the background.
type HorizonScheduler struct {
	Calendar      *scheduling.CalendarService
	CheckInterval time.Duration
	MinAhead      int
	Enabled       bool
	Logger        *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHorizonScheduler creates a new scheduler.
func NewHorizonScheduler(calendar *scheduling.CalendarService, logger *zap.Logger) *HorizonScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HorizonScheduler{
		Calendar:      calendar,
		CheckInterval: 1 * time.Hour,
		MinAhead:      2,
		Enabled:       true,
		Logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (hs *HorizonScheduler) Start() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if !hs.Enabled {
		hs.Logger.Info("horizon scheduler disabled, not starting")
		return
	}
	if hs.ticker != nil {
		return
	}

	hs.ticker = time.NewTicker(hs.CheckInterval)
	hs.stop = make(chan struct{})
	hs.wg.Add(1)

	go hs.run()

	hs.Logger.Info("horizon scheduler started",
		zap.Duration("interval", hs.CheckInterval),
		zap.Int("min_ahead", hs.MinAhead),
	)
}

// Stop stops the scheduler and waits for an in-flight check.
func (hs *HorizonScheduler) Stop() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.ticker != nil {
		hs.ticker.Stop()
		close(hs.stop)
		hs.wg.Wait()
		hs.ticker = nil
		hs.Logger.Info("horizon scheduler stopped")
	}
}

func (hs *HorizonScheduler) run() {
	defer hs.wg.Done()

	// Run immediately on start
	hs.check()

	for {
		select {
		case <-hs.ticker.C:
			hs.check()
		case <-hs.stop:
			return
		}
	}
}

func (hs *HorizonScheduler) check() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := hs.RunNow(ctx); err != nil {
		hs.Logger.Error("horizon check failed", zap.Error(err))
	}
}

// RunNow performs one check synchronously. It reports whether the
// sequence was extended.
func (hs *HorizonScheduler) RunNow(ctx context.Context) (bool, error) {
	extended, err := hs.Calendar.EnsureHorizon(ctx, hs.MinAhead)
	if err != nil {
		return false, err
	}
	if extended {
		hs.Logger.Info("payroll period horizon extended")
	} else {
		hs.Logger.Debug("payroll period horizon sufficient")
	}
	return extended, nil
}
